package wsaerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCodeKinds(t *testing.T) {
	tests := []struct {
		code Code
		want Kind
	}{
		{QueryNoResp, KindTimeout},
		{RespUnknown, KindProtocol},
		{FreqOutOfBound, KindValidation},
		{SweepListEmpty, KindState},
		{NotIQFrame, KindData},
		{InvTimestamp, KindProtocol},
		{EthernetConnectFailed, KindTransport},
		{SetFailed, KindDevice},
		{OK, KindNone},
	}
	for _, tt := range tests {
		if got := tt.code.Kind(); got != tt.want {
			t.Fatalf("%s.Kind() = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestStatusIsSignedCode(t *testing.T) {
	if got := Status(nil); got != 0 {
		t.Fatalf("Status(nil) = %d", got)
	}
	err := New(FreqOutOfBound, "set freq")
	if got := Status(err); got != -10601 {
		t.Fatalf("Status = %d, want -10601", got)
	}
	wrapped := fmt.Errorf("tuning: %w", err)
	if got := CodeOf(wrapped); got != FreqOutOfBound {
		t.Fatalf("CodeOf through wrap = %s", got)
	}
	if !errors.Is(wrapped, New(FreqOutOfBound, "other op")) {
		t.Fatalf("errors.Is should match on code")
	}
	if errors.Is(wrapped, New(InvIFGain, "set freq")) {
		t.Fatalf("errors.Is matched a different code")
	}
}

func TestErrorMessageCarriesCause(t *testing.T) {
	err := Wrap(QueryNoResp, "query SWEEP:LIST:STATUS?", errors.New("i/o timeout"))
	msg := err.Error()
	for _, want := range []string{"SWEEP:LIST:STATUS?", "QUERYNORESP", "-11504", "i/o timeout"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	if !strings.Contains(fmt.Sprintf("%+v", err), "wsaerr_test.go") {
		t.Fatalf("expected call site in detailed format: %+v", err)
	}
	if KindOf(err) != KindTimeout {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
}
