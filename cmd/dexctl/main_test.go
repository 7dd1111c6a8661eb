package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestTicksFullRange(t *testing.T) {
	out, err := run(t, "ticks", "--fee", "3000")
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}
	var got struct {
		TickLower int  `json:"tick_lower"`
		TickUpper int  `json:"tick_upper"`
		FullRange bool `json:"full_range"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.TickLower != -887220 || got.TickUpper != 887220 || !got.FullRange {
		t.Fatalf("unexpected range %+v", got)
	}
}

func TestSqrtPriceEncodeDecode(t *testing.T) {
	out, err := run(t, "sqrtprice", "encode", "1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(out, `"sqrtPriceX96": "79228162514264337593543950336"`) || !strings.Contains(out, `"tick": 0`) {
		t.Fatalf("unexpected encode output %s", out)
	}

	out, err = run(t, "sqrtprice", "decode", "79228162514264337593543950336")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out, `"price": "1.0000"`) {
		t.Fatalf("unexpected decode output %s", out)
	}

	if _, err := run(t, "sqrtprice", "decode", "abc"); err == nil {
		t.Fatalf("expected error for bad input")
	}
	if _, err := run(t, "sqrtprice", "encode", "0"); err == nil {
		t.Fatalf("expected error for zero price")
	}
}

func TestSwapRequiresTokens(t *testing.T) {
	if _, err := run(t, "swap", "--amount", "1"); err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected missing --in error, got %v", err)
	}
}

func TestPositionIDValidated(t *testing.T) {
	if _, err := run(t, "liquidity", "remove", "zero"); err == nil || !strings.Contains(err.Error(), "invalid token id") {
		t.Fatalf("expected token id error, got %v", err)
	}
}
