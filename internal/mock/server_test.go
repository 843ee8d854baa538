package mock

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fraudload/internal/payload"
)

func post(t *testing.T, h http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, IngestPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func validBody(t *testing.T, gen *payload.Generator) []byte {
	t.Helper()
	b, err := json.Marshal(gen.Generate())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestIngestAcceptsGeneratedPayload(t *testing.T) {
	s := New(Config{}, nil)
	gen := payload.NewGenerator(payload.NewDevicePool(), 1)

	w := post(t, s.Handler(), validBody(t, gen))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var echoed payload.TransactionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &echoed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if echoed.TransactionID == "" || echoed.Type != payload.KindP2P {
		t.Fatalf("unexpected echo: %+v", echoed)
	}
	if c := s.Counters(); c.Accepted != 1 || c.Rejected != 0 {
		t.Fatalf("counters: %+v", c)
	}
}

func TestIngestAcceptsMerchantPayment(t *testing.T) {
	s := New(Config{}, nil)
	rec := payload.NewGenerator(payload.NewDevicePool(), 2).Generate()
	merchant := int64(77)
	rec.Type = payload.KindMerchant
	rec.ReceiverUserID = nil
	rec.MerchantID = &merchant

	body, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if w := post(t, s.Handler(), body); w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := s.Recent(1); len(got) != 1 || got[0].Type != payload.KindMerchant || *got[0].MerchantID != merchant {
		t.Fatalf("recent: %+v", got)
	}
}

func TestIngestRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"missing id":       `{"type":"P2P_TRANSFER","senderUserId":1001,"amount":5,"currency":"USD"}`,
		"unknown type":     `{"transactionId":"a","type":"REFUND","senderUserId":1001,"amount":5,"currency":"USD"}`,
		"zero amount":      `{"transactionId":"a","type":"P2P_TRANSFER","senderUserId":1001,"amount":0,"currency":"USD"}`,
		"negative amount":  `{"transactionId":"a","type":"P2P_TRANSFER","senderUserId":1001,"amount":-3,"currency":"USD"}`,
		"long currency":    `{"transactionId":"a","type":"P2P_TRANSFER","senderUserId":1001,"amount":5,"currency":"USDT"}`,
		"missing sender":   `{"transactionId":"a","type":"P2P_TRANSFER","amount":5,"currency":"USD"}`,
		"missing currency": `{"transactionId":"a","type":"P2P_TRANSFER","senderUserId":1001,"amount":5}`,
	}

	s := New(Config{}, nil)
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if w := post(t, s.Handler(), []byte(body)); w.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", w.Code)
			}
		})
	}
	if c := s.Counters(); c.Rejected != uint64(len(cases)) || c.Accepted != 0 {
		t.Fatalf("counters: %+v", c)
	}
}

func TestFailureRatioIsExact(t *testing.T) {
	s := New(Config{FailureRatio: 0.05}, nil)
	gen := payload.NewGenerator(payload.NewDevicePool(), 2)

	var fails int
	for i := 0; i < 1000; i++ {
		if w := post(t, s.Handler(), validBody(t, gen)); w.Code == http.StatusInternalServerError {
			fails++
		}
	}
	if fails != 50 {
		t.Fatalf("failed %d of 1000, want 50", fails)
	}
	if c := s.Counters(); c.Failed != 50 || c.Accepted != 950 {
		t.Fatalf("counters: %+v", c)
	}
}

func TestShouldFail(t *testing.T) {
	for _, ratio := range []float64{0, 0.01, 0.1, 0.25, 1} {
		var n int
		for i := uint64(0); i < 400; i++ {
			if shouldFail(i, ratio) {
				n++
			}
		}
		if want := int(400 * ratio); n != want {
			t.Errorf("ratio %v: %d failures, want %d", ratio, n, want)
		}
	}
}

func TestLatencyIsApplied(t *testing.T) {
	s := New(Config{Latency: 30 * time.Millisecond}, nil)
	gen := payload.NewGenerator(payload.NewDevicePool(), 3)

	start := time.Now()
	if w := post(t, s.Handler(), validBody(t, gen)); w.Code != http.StatusAccepted {
		t.Fatalf("status %d", w.Code)
	}
	if took := time.Since(start); took < 30*time.Millisecond {
		t.Fatalf("response after %v, want at least 30ms", took)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := New(Config{}, nil)
	gen := payload.NewGenerator(payload.NewDevicePool(), 4)

	var ids []string
	for i := 0; i < 5; i++ {
		rec := gen.Generate()
		ids = append(ids, rec.TransactionID)
		b, _ := json.Marshal(rec)
		post(t, s.Handler(), b)
	}

	req := httptest.NewRequest(http.MethodGet, IngestPath+"?limit=2", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	var got []payload.TransactionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].TransactionID != ids[4] || got[1].TransactionID != ids[3] {
		t.Fatalf("unexpected recent records: %+v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Port: 8081, FailureRatio: 0.05}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, c := range []Config{{Port: -1}, {FailureRatio: 1.5}, {Latency: -time.Second}} {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}
