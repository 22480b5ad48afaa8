package handlers

import (
	"context"
	"sync"
	"time"

	"ton_mining/internal/ton"

	redis "github.com/redis/go-redis/v9"
)

// proofPayloads remembers the ton_proof payloads handed out by /ton/config.
// A payload is accepted once, within ton.ProofTTL.
type proofPayloads struct {
	redis *redis.Client

	mu     sync.Mutex
	issued map[string]time.Time
}

func newProofPayloads(rdb *redis.Client) *proofPayloads {
	return &proofPayloads{redis: rdb, issued: make(map[string]time.Time)}
}

func (p *proofPayloads) issue(ctx context.Context) (string, error) {
	payload := ton.GeneratePayload()
	if p.redis != nil {
		if err := p.redis.Set(ctx, "ton_proof:"+payload, 1, ton.ProofTTL).Err(); err != nil {
			return "", err
		}
		return payload, nil
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, exp := range p.issued {
		if now.After(exp) {
			delete(p.issued, k)
		}
	}
	p.issued[payload] = now.Add(ton.ProofTTL)
	return payload, nil
}

// consume reports whether payload was issued and not used yet.
func (p *proofPayloads) consume(ctx context.Context, payload string) bool {
	if payload == "" {
		return false
	}
	if p.redis != nil {
		n, err := p.redis.Del(ctx, "ton_proof:"+payload).Result()
		return err == nil && n == 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	exp, ok := p.issued[payload]
	delete(p.issued, payload)
	return ok && time.Now().Before(exp)
}
