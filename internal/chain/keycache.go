package chain

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// HotWalletCache persists an auto-generated signing key to disk so a
// restarted sniper keeps trading out of the same wallet instead of
// abandoning whatever it was holding. Only used when no private key is
// configured; production operation should always supply one.
type HotWalletCache struct {
	keyPath      string
	refreshEvery time.Duration
	rpc          *RPCClient

	mu          sync.RWMutex
	privateKey  []byte
	publicKey   ed25519.PublicKey
	address     string
	lastRefresh time.Time
}

// cachedKeyFile is the on-disk JSON layout for a cached hot wallet key.
type cachedKeyFile struct {
	PrivateKey  string    `json:"private_key"`
	PublicKey   string    `json:"public_key"`
	Address     string    `json:"address"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewHotWalletCache builds a cache rooted at cacheDir, rotating the key
// every refreshEvery. rpc, if non-nil, is consulted before a rotation to
// refuse orphaning a funded wallet; pass nil to skip that check (e.g. in
// tests).
func NewHotWalletCache(cacheDir string, refreshEvery time.Duration, rpc *RPCClient) *HotWalletCache {
	return &HotWalletCache{
		keyPath:      filepath.Join(cacheDir, "hot_wallet.json"),
		refreshEvery: refreshEvery,
		rpc:          rpc,
	}
}

// GetOrGenerate loads the cached key if it's still within refreshEvery of
// its generation time, otherwise mints a new one and caches it.
func (m *HotWalletCache) GetOrGenerate() (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadFromCache() {
		log.Info().Str("address", m.address).Time("generatedAt", m.lastRefresh).
			Msg("loaded hot wallet from cache")
		return m.createWallet()
	}

	if err := m.generateNewKey(context.Background()); err != nil {
		return nil, err
	}
	if err := m.saveToCache(); err != nil {
		log.Warn().Err(err).Msg("failed to persist hot wallet key, it will not survive a restart")
	}

	log.Warn().Str("address", m.address).Dur("refreshEvery", m.refreshEvery).
		Msg("generated new hot wallet, fund it to trade")
	return m.createWallet()
}

// GetAddress returns the current wallet address.
func (m *HotWalletCache) GetAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.address
}

// ShouldRefresh reports whether the cached key has aged past refreshEvery.
func (m *HotWalletCache) ShouldRefresh() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.lastRefresh) > m.refreshEvery
}

// Refresh rotates the key, refusing to do so if rpc reports a nonzero
// balance still sitting on the current address — rotating then would
// strand those lamports behind a key nothing keeps.
func (m *HotWalletCache) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.generateNewKey(ctx); err != nil {
		return err
	}
	if err := m.saveToCache(); err != nil {
		return err
	}

	log.Info().Str("address", m.address).Msg("hot wallet key rotated")
	return nil
}

func (m *HotWalletCache) loadFromCache() bool {
	data, err := os.ReadFile(m.keyPath)
	if err != nil {
		return false
	}

	var cached cachedKeyFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return false
	}
	if time.Since(cached.GeneratedAt) > m.refreshEvery {
		return false
	}

	m.privateKey, _ = base58.Decode(cached.PrivateKey)
	m.address = cached.Address
	m.lastRefresh = cached.GeneratedAt

	if len(m.privateKey) >= 64 {
		m.publicKey = ed25519.PublicKey(m.privateKey[32:64])
	}

	return true
}

func (m *HotWalletCache) saveToCache() error {
	if err := os.MkdirAll(filepath.Dir(m.keyPath), 0700); err != nil {
		return err
	}

	cached := cachedKeyFile{
		PrivateKey:  base58.Encode(m.privateKey),
		Address:     m.address,
		GeneratedAt: m.lastRefresh,
	}

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.keyPath, data, 0600)
}

func (m *HotWalletCache) generateNewKey(ctx context.Context) error {
	if m.rpc != nil && m.address != "" {
		if bal, err := m.rpc.GetBalance(ctx, m.address); err == nil && bal > 0 {
			return fmt.Errorf("refusing to rotate hot wallet %s: %d lamports still held, withdraw first", m.address, bal)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	m.publicKey = pub
	m.privateKey = priv
	m.address = base58.Encode(pub)
	m.lastRefresh = time.Now()

	return nil
}

func (m *HotWalletCache) createWallet() (*Wallet, error) {
	return &Wallet{
		privateKey: m.privateKey,
		publicKey:  m.publicKey,
		address:    m.address,
	}, nil
}
