// Package chain is a hash-chained vote ledger. Records are sealed into blocks
// whose Keccak-256 hash covers the previous block, and each block hash is
// signed with the ledger's ECDSA key so the chain can be audited offline.
package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"unionvote/internal/ledger/models"
	"unionvote/pkg/platform/sentinel"
	"unionvote/pkg/platform/shard"
)

const defaultBlockSize = 16

var (
	ErrNoSigningKey  = errors.New("chain ledger requires a signing key")
	ErrBrokenLink    = errors.New("block does not link to its predecessor")
	ErrBadHash       = errors.New("block hash does not match its contents")
	ErrBadSignature  = errors.New("block signature does not verify")
	ErrIndexSequence = errors.New("block index out of sequence")
)

// Block is a sealed batch of records, ordered by voter handle.
type Block struct {
	Index     uint64              `json:"index"`
	SealedAt  time.Time           `json:"sealed_at"`
	Records   []models.VoteRecord `json:"records"`
	PrevHash  []byte              `json:"prev_hash"`
	Hash      []byte              `json:"hash"`
	Signature []byte              `json:"signature"`
}

func (b *Block) digest() ([]byte, error) {
	records, err := json.Marshal(b.Records)
	if err != nil {
		return nil, fmt.Errorf("encode block records: %w", err)
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, b.Index)
	_ = binary.Write(buf, binary.BigEndian, b.SealedAt.UnixNano())
	buf.Write(records)
	buf.Write(b.PrevHash)
	return crypto.Keccak256(buf.Bytes()), nil
}

// Ledger is the DistributedLedger backend. The has-voted flags are held
// per member beside the chain; appends to the pending batch are serialized.
type Ledger struct {
	key       *ecdsa.PrivateKey
	blockSize int
	logger    *slog.Logger
	clock     func() time.Time

	locks shard.Locks
	flags [shard.Count]map[string]map[string]struct{}

	mu      sync.RWMutex
	blocks  []Block
	pending []models.VoteRecord
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithBlockSize sets how many records are batched before a block is sealed.
func WithBlockSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.blockSize = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// New builds a ledger and seals its genesis block.
func New(key *ecdsa.PrivateKey, opts ...Option) (*Ledger, error) {
	if key == nil {
		return nil, ErrNoSigningKey
	}
	l := &Ledger{
		key:       key,
		blockSize: defaultBlockSize,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	for i := range l.flags {
		l.flags[i] = make(map[string]map[string]struct{})
	}

	genesis := Block{Index: 0, SealedAt: l.clock().UTC(), Records: []models.VoteRecord{}, PrevHash: make([]byte, 32)}
	if err := l.sign(&genesis); err != nil {
		return nil, err
	}
	l.blocks = []Block{genesis}
	return l, nil
}

// KeyFromHex parses a hex-encoded secp256k1 private key.
func KeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, ErrNoSigningKey
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse chain signing key: %w", err)
	}
	return key, nil
}

func (l *Ledger) Name() string { return "chain" }

// Cast sets the flag and appends the record to the pending batch, sealing a
// block once the batch is full.
func (l *Ledger) Cast(ctx context.Context, memberID string, record models.VoteRecord) error {
	unlock := l.locks.Lock(memberID)
	defer unlock()

	shardFlags := l.flags[shard.Index(memberID)]
	if _, ok := shardFlags[memberID][record.PositionID]; ok {
		return sentinel.ErrAlreadyUsed
	}

	l.mu.Lock()
	l.pending = append(l.pending, record)
	if len(l.pending) >= l.blockSize {
		if err := l.sealLocked(); err != nil {
			l.pending = l.pending[:len(l.pending)-1]
			l.mu.Unlock()
			l.logger.ErrorContext(ctx, "failed to seal ledger block", "error", err)
			return fmt.Errorf("seal block: %w: %w", sentinel.ErrUnavailable, err)
		}
	}
	l.mu.Unlock()

	if shardFlags[memberID] == nil {
		shardFlags[memberID] = make(map[string]struct{})
	}
	shardFlags[memberID][record.PositionID] = struct{}{}
	return nil
}

func (l *Ledger) VotedPositions(_ context.Context, memberID string) ([]string, error) {
	unlock := l.locks.Lock(memberID)
	defer unlock()

	voted := l.flags[shard.Index(memberID)][memberID]
	out := make([]string, 0, len(voted))
	for positionID := range voted {
		out = append(out, positionID)
	}
	sort.Strings(out)
	return out, nil
}

// Records returns the sealed and pending records for positionID ordered by
// voter handle.
func (l *Ledger) Records(_ context.Context, positionID string) ([]models.VoteRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.VoteRecord
	for _, b := range l.blocks {
		for _, r := range b.Records {
			if r.PositionID == positionID {
				out = append(out, r)
			}
		}
	}
	for _, r := range l.pending {
		if r.PositionID == positionID {
			out = append(out, r)
		}
	}
	models.SortRecords(out)
	return out, nil
}

// Seal closes the pending batch into a block. It is a no-op when nothing is
// pending.
func (l *Ledger) Seal(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	if err := l.sealLocked(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "ledger block sealed", "height", len(l.blocks)-1)
	return nil
}

// Blocks returns a copy of the sealed chain.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Block(nil), l.blocks...)
}

// PublicKey is the key block signatures verify against.
func (l *Ledger) PublicKey() *ecdsa.PublicKey {
	return &l.key.PublicKey
}

func (l *Ledger) sealLocked() error {
	prev := l.blocks[len(l.blocks)-1]
	sealedAt := l.clock().UTC()
	if !sealedAt.After(prev.SealedAt) {
		sealedAt = prev.SealedAt.Add(time.Nanosecond)
	}
	records := append([]models.VoteRecord(nil), l.pending...)
	models.SortRecords(records)
	block := Block{
		Index:    prev.Index + 1,
		SealedAt: sealedAt,
		Records:  records,
		PrevHash: prev.Hash,
	}
	if err := l.sign(&block); err != nil {
		return err
	}
	l.blocks = append(l.blocks, block)
	l.pending = nil
	return nil
}

func (l *Ledger) sign(b *Block) error {
	hash, err := b.digest()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, l.key)
	if err != nil {
		return fmt.Errorf("sign block %d: %w", b.Index, err)
	}
	b.Hash = hash
	b.Signature = sig
	return nil
}

// ValidateChain checks every link, hash and signature of blocks against pub.
func ValidateChain(blocks []Block, pub *ecdsa.PublicKey) error {
	pubBytes := crypto.FromECDSAPub(pub)
	for i := range blocks {
		b := &blocks[i]
		if b.Index != uint64(i) {
			return fmt.Errorf("block %d: %w", i, ErrIndexSequence)
		}
		if i > 0 && !bytes.Equal(b.PrevHash, blocks[i-1].Hash) {
			return fmt.Errorf("block %d: %w", i, ErrBrokenLink)
		}
		hash, err := b.digest()
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if !bytes.Equal(hash, b.Hash) {
			return fmt.Errorf("block %d: %w", i, ErrBadHash)
		}
		if len(b.Signature) != crypto.SignatureLength ||
			!crypto.VerifySignature(pubBytes, hash, b.Signature[:crypto.RecoveryIDOffset]) {
			return fmt.Errorf("block %d: %w", i, ErrBadSignature)
		}
	}
	return nil
}
