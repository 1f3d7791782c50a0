package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
)

// submit signs kind/params with key and sends it. The envelope is stamped
// with the node's program id and current oracle time.
func (a *app) submit(ctx context.Context, out io.Writer, key *crypto.PrivateKey, kind engine.Kind, params interface{}) (*engine.Receipt, error) {
	info, err := a.client.NodeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("node info: %w", err)
	}

	ins, err := engine.NewInstruction(info.Program, kind, params, info.Time, randomNonce())
	if err != nil {
		return nil, err
	}
	if err := ins.Sign(key); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	receipt, err := a.client.Submit(ctx, ins)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return receipt, printJSON(out, receipt)
}

// submitAs unlocks --key and submits one instruction.
func (a *app) submitAs(ctx context.Context, out io.Writer, kind engine.Kind, params interface{}) error {
	key, err := a.signer()
	if err != nil {
		return err
	}
	defer key.Zero()
	_, err = a.submit(ctx, out, key, kind, params)
	return err
}

func randomNonce() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("read random nonce: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
