package txsched

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransactionPayloadJSON(t *testing.T) {
	p := TransactionPayload{
		ScheduleRequest: ScheduleRequest{
			UserID:     5,
			Amount:     decimal.RequireFromString("10.50"),
			Type:       TransactionDeposit,
			ScheduleAt: "2030-01-01T00:00:00Z",
		},
		TransactionID: "tx-1",
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	// Request fields are flattened next to the id and the amount is a number.
	for _, want := range []string{`"transactionId":"tx-1"`, `"userId":5`, `"amount":10.5`, `"type":"DEPOSIT"`} {
		if !strings.Contains(s, want) {
			t.Errorf("payload %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "interval") || strings.Contains(s, "frequency") {
		t.Errorf("one-time payload should omit recurrence fields: %s", s)
	}
}

func TestAmountMarshalsAsNumber(t *testing.T) {
	if decimal.MarshalJSONWithoutQuotes {
		t.Fatal("package must not flip decimal.MarshalJSONWithoutQuotes")
	}

	req := &ScheduleRequest{UserID: 1, Amount: decimal.RequireFromString("0.10"), Type: TransactionWithdraw, ScheduleAt: "2030-01-01T00:00:00Z"}
	job := JobInfo{TransactionID: "tx-2", Kind: JobOneTime, Amount: decimal.NewFromInt(-7)}
	for _, tt := range []struct {
		v    any
		want string
	}{
		{req, `"amount":0.1`},
		{*req, `"amount":0.1`},
		{job, `"amount":-7`},
		{&job, `"amount":-7`},
	} {
		data, err := json.Marshal(tt.v)
		if err != nil {
			t.Fatalf("marshal %T: %v", tt.v, err)
		}
		if !strings.Contains(string(data), tt.want) {
			t.Errorf("%T: %s missing %s", tt.v, data, tt.want)
		}
		if strings.Count(string(data), `"amount"`) != 1 {
			t.Errorf("%T: amount written more than once: %s", tt.v, data)
		}
	}

	var back TransactionPayload
	data, err := json.Marshal(TransactionPayload{ScheduleRequest: *req, TransactionID: "tx-3"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !back.Amount.Equal(req.Amount) || back.TransactionID != "tx-3" || back.UserID != 1 {
		t.Errorf("payload did not survive encoding: %+v", back)
	}
}

func TestIsRecurring(t *testing.T) {
	iv := &Interval{Unit: UnitHour, Value: 1}
	tests := []struct {
		interval  *Interval
		frequency int
		want      bool
	}{
		{nil, 0, false},
		{iv, 0, false},
		{nil, 3, false},
		{iv, 3, true},
	}
	for _, tt := range tests {
		r := ScheduleRequest{Interval: tt.interval, Frequency: tt.frequency}
		if got := r.IsRecurring(); got != tt.want {
			t.Errorf("interval=%v frequency=%d: got %v, want %v", tt.interval, tt.frequency, got, tt.want)
		}
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID("dsp"), GenerateID("dsp")
	if !strings.HasPrefix(a, "dsp-") || a == b {
		t.Errorf("unexpected ids %q %q", a, b)
	}
	if len(NewTransactionID()) != 36 {
		t.Errorf("transaction id should be a UUID")
	}
}
