package song

import (
	"context"
	"time"

	"FragFM/cache"
	"FragFM/logger"
)

// URLSigner issues presigned read URLs.
type URLSigner interface {
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Signer signs object keys, reusing cached URLs when a cache is configured.
// The cache is best effort: any cache error falls through to signing.
type Signer struct {
	signer URLSigner
	cache  cache.URLCache
}

// NewSigner creates a Signer; urlCache may be nil.
func NewSigner(signer URLSigner, urlCache cache.URLCache) *Signer {
	return &Signer{signer: signer, cache: urlCache}
}

// Sign returns a read URL for key valid for ttl.
func (s *Signer) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.cache != nil {
		url, ok, err := s.cache.Get(ctx, key, ttl)
		if err != nil {
			logger.Warn("signed URL cache read failed", logger.String("key", key), logger.ErrorField(err))
		} else if ok {
			return url, nil
		}
	}

	url, err := s.signer.SignedReadURL(ctx, key, ttl)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ttl, url); err != nil {
			logger.Warn("signed URL cache write failed", logger.String("key", key), logger.ErrorField(err))
		}
	}
	return url, nil
}
