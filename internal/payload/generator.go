// Package payload synthesizes transaction records for the ingestion endpoint.
package payload

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the transaction type understood by the ingestion endpoint.
type Kind string

const (
	KindP2P      Kind = "P2P_TRANSFER"
	KindMerchant Kind = "MERCHANT_PAYMENT"
)

const (
	senderMin, senderMax     = 1000, 5000
	receiverMin, receiverMax = 2000, 9000

	// DeviceReuseProbability is the chance of reusing a pooled device when
	// the pool is non-empty.
	DeviceReuseProbability = 0.6

	devicePrefix = "device-"
)

// TransactionRecord is the JSON body POSTed per arrival. It is built once
// and not modified afterwards.
type TransactionRecord struct {
	TransactionID  string    `json:"transactionId" binding:"required"`
	Type           Kind      `json:"type" binding:"required,oneof=P2P_TRANSFER MERCHANT_PAYMENT"`
	SenderUserID   int64     `json:"senderUserId" binding:"required"`
	ReceiverUserID *int64    `json:"receiverUserId"`
	MerchantID     *int64    `json:"merchantId"`
	Amount         int64     `json:"amount" binding:"required,gt=0"`
	Currency       Currency  `json:"currency" binding:"required,len=3"`
	DeviceID       string    `json:"deviceId"`
	Timestamp      Timestamp `json:"timestamp"`
}

// Timestamp renders as ISO-8601 UTC with millisecond precision.
type Timestamp struct {
	time.Time
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timestampLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339Nano+`"`, string(b))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Generator produces one TransactionRecord per call. The random source is
// injected so runs can be reproduced from a seed; the device pool is shared
// with every other generator of the run.
type Generator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	pool *DevicePool
	now  func() time.Time
}

func NewGenerator(pool *DevicePool, seed int64) *Generator {
	return &Generator{
		rng:  rand.New(rand.NewSource(seed)),
		pool: pool,
		now:  time.Now,
	}
}

// Generate builds a fresh peer-to-peer transfer.
func (g *Generator) Generate() TransactionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	currency := PickCurrency(g.rng)
	usd, _ := PickAmountUSD(g.rng)
	receiver := g.randomInt(receiverMin, receiverMax)

	rec := TransactionRecord{
		TransactionID:  g.randomUUID(),
		Type:           KindP2P,
		SenderUserID:   g.randomInt(senderMin, senderMax),
		ReceiverUserID: &receiver,
		MerchantID:     nil,
		Amount:         Convert(usd, currency),
		Currency:       currency,
		Timestamp:      Timestamp{g.now().UTC()},
	}
	rec.DeviceID = g.deviceID()
	return rec
}

// deviceID reuses a pooled id with DeviceReuseProbability, otherwise mints
// and registers a new one. Callers hold g.mu.
func (g *Generator) deviceID() string {
	if g.pool.Len() > 0 && g.rng.Float64() < DeviceReuseProbability {
		if id, ok := g.pool.Sample(g.rng.Intn); ok {
			return id
		}
	}
	id := devicePrefix + g.randomUUID()[:8]
	g.pool.Add(id)
	return id
}

// randomInt is inclusive on both ends.
func (g *Generator) randomInt(min, max int64) int64 {
	return g.rng.Int63n(max-min+1) + min
}

func (g *Generator) randomUUID() string {
	return uuid.Must(uuid.NewRandomFromReader(g.rng)).String()
}
