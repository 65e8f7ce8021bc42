// Package store is the single-writer-gated relational persistence layer:
// users, miner pool, groups, blocks, and the peer directory. Every write
// passes through one mutex (the "write gate"); reads are never blocked by
// each other, matching the single-writer/concurrent-reader discipline the
// data model requires. A read-through cache sits in front of the hot
// lookups, invalidated on every write that could change their answer.
package store

import (
	"encoding/json"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/model"
)

var logger = log.NewModuleLogger(log.Store)

// cacheBytes is the size of the read-through cache. Modest: only GetUser
// reads go through it; blocks and groups are always read from the database.
const cacheBytes = 32 * 1024 * 1024

// Store is the durable keyed storage described by the data model.
type Store struct {
	db    *gorm.DB
	cache *fastcache.Cache

	// writeMu is the single-writer gate: every mutating operation holds
	// it for its duration. Readers never take it.
	writeMu sync.Mutex
}

// Open connects to a MySQL-compatible DSN and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, Storage("open connection", err)
	}
	if err := db.AutoMigrate(
		&userRecord{}, &minerPoolRecord{}, &groupRecord{},
		&blockRecord{}, &peerRecord{}, &txExecutedRecord{},
	).Error; err != nil {
		return nil, Storage("auto-migrate schema", err)
	}
	return &Store{db: db, cache: fastcache.New(cacheBytes)}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func userCacheKey(addr common.Address) []byte { return []byte("user:" + addr) }

// GetUser returns the user at addr, or (nil, nil) if absent.
func (s *Store) GetUser(addr common.Address) (*model.User, error) {
	if raw, found := s.cache.HasGet(nil, userCacheKey(addr)); found {
		if len(raw) == 0 {
			return nil, nil
		}
		u, err := decodeUser(raw)
		return u, err
	}

	var rec userRecord
	err := s.db.Where("address = ?", string(addr)).First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		s.cache.Set(userCacheKey(addr), nil)
		return nil, nil
	}
	if err != nil {
		return nil, Storage("get_user", err)
	}
	u := recordToUser(rec)
	s.cache.Set(userCacheKey(addr), encodeUser(u))
	return u, nil
}

// AllUsers returns every user keyed by address.
func (s *Store) AllUsers() (map[common.Address]*model.User, error) {
	var recs []userRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, Storage("all_users", err)
	}
	out := make(map[common.Address]*model.User, len(recs))
	for _, rec := range recs {
		u := recordToUser(rec)
		out[u.Address] = u
	}
	return out, nil
}

// PutUsers upserts a batch of users outside of any snapshot transaction;
// used for administrative seeding, not the consensus hot path (that goes
// through ApplySnapshot).
func (s *Store) PutUsers(users map[common.Address]*model.User) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, u := range users {
		if err := s.upsertUser(s.db, u); err != nil {
			return Storage("put_users", err)
		}
		s.cache.Del(userCacheKey(u.Address))
	}
	return nil
}

func (s *Store) upsertUser(tx *gorm.DB, u *model.User) error {
	rec := userToRecord(u)
	return tx.Save(&rec).Error
}

// MinerPoolAdd adds addr to the pending miner pool outside of a snapshot
// (used by tests and by tooling); normal joins flow through the executor
// and ApplySnapshot.
func (s *Store) MinerPoolAdd(addr common.Address, joinedAt int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	rec := minerPoolRecord{Address: string(addr), JoinedAt: joinedAt}
	if err := s.db.Save(&rec).Error; err != nil {
		return Storage("miner_pool_add", err)
	}
	return nil
}

// MinerPoolSnapshot returns the full pending miner pool.
func (s *Store) MinerPoolSnapshot() (map[common.Address]*model.MinerPoolEntry, error) {
	var recs []minerPoolRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, Storage("miner_pool_snapshot", err)
	}
	out := make(map[common.Address]*model.MinerPoolEntry, len(recs))
	for _, rec := range recs {
		out[common.Address(rec.Address)] = &model.MinerPoolEntry{
			Address:  common.Address(rec.Address),
			JoinedAt: rec.JoinedAt,
		}
	}
	return out, nil
}

// MinerPoolClear empties the pending miner pool outside of a snapshot.
// Group rotation does not call it: ApplySnapshot replaces the pool with
// the snapshot's (then empty) pool.
func (s *Store) MinerPoolClear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.db.Delete(&minerPoolRecord{}).Error; err != nil {
		return Storage("miner_pool_clear", err)
	}
	return nil
}

// SaveGroup persists a new group.
func (s *Store) SaveGroup(g *model.Group) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveGroupTx(s.db, g)
}

func (s *Store) saveGroupTx(tx *gorm.DB, g *model.Group) error {
	raw, err := json.Marshal(g.Miners)
	if err != nil {
		return errors.Wrap(err, "marshal group miners")
	}
	rec := groupRecord{GroupID: g.GroupID, MinersRaw: string(raw), CreatedAt: g.CreatedAt}
	if err := tx.Save(&rec).Error; err != nil {
		return Storage("save_group", err)
	}
	return nil
}

// GetGroup looks up a group by id.
func (s *Store) GetGroup(id uint64) (*model.Group, error) {
	var rec groupRecord
	err := s.db.Where("group_id = ?", id).First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, Storage("get_group", err)
	}
	return recordToGroup(rec)
}

// LatestGroup returns the group with the highest group_id, or nil if none
// exist yet.
func (s *Store) LatestGroup() (*model.Group, error) {
	var rec groupRecord
	err := s.db.Order("group_id desc").First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, Storage("latest_group", err)
	}
	return recordToGroup(rec)
}

// AppendBlock appends a single block, enforcing chain contiguity.
func (s *Store) AppendBlock(b *model.Block) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.appendBlockTx(s.db, b)
}

func (s *Store) appendBlockTx(tx *gorm.DB, b *model.Block) error {
	latest, err := s.latestBlockLocked(tx)
	if err != nil {
		return err
	}
	if latest == nil {
		if b.BlockNumber != 0 {
			return ErrChainGap
		}
	} else {
		if b.BlockNumber != latest.BlockNumber+1 {
			return ErrChainGap
		}
		if b.PrevHash != latest.StateHash {
			return ErrChainBreak
		}
	}
	rec, err := blockToRecord(b)
	if err != nil {
		return errors.Wrap(err, "encode block")
	}
	if err := tx.Create(&rec).Error; err != nil {
		return Storage("append_block", err)
	}
	return nil
}

// LatestBlock returns the highest-numbered block, or nil if the chain is
// empty (before genesis is created).
func (s *Store) LatestBlock() (*model.Block, error) {
	return s.latestBlockLocked(s.db)
}

func (s *Store) latestBlockLocked(tx *gorm.DB) (*model.Block, error) {
	var rec blockRecord
	err := tx.Order("block_number desc").First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, Storage("latest_block", err)
	}
	return recordToBlock(rec)
}

// GetBlock looks up a block by number.
func (s *Store) GetBlock(number uint64) (*model.Block, error) {
	var rec blockRecord
	err := s.db.Where("block_number = ?", number).First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, Storage("get_block", err)
	}
	return recordToBlock(rec)
}

// BlockCount returns the number of blocks in the chain.
func (s *Store) BlockCount() (int, error) {
	var count int
	if err := s.db.Model(&blockRecord{}).Count(&count).Error; err != nil {
		return 0, Storage("block_count", err)
	}
	return count, nil
}

// ApplySnapshot is the only path used by finalization: it commits the
// user rewrites, miner pool replacement, a group write if the snapshot
// carries a new one, the executed-transaction record, and the block
// append as a single atomic unit. Any failure rolls the whole thing back,
// leaving the store exactly as it was before the call.
func (s *Store) ApplySnapshot(snap model.Snapshot, block *model.Block) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := s.db.Begin()
	if tx.Error != nil {
		return Storage("apply_snapshot begin", tx.Error)
	}
	if err := s.applySnapshotTx(tx, snap, block); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return Storage("apply_snapshot commit", err)
	}

	s.invalidateAfterApply()
	return nil
}

func (s *Store) applySnapshotTx(tx *gorm.DB, snap model.Snapshot, block *model.Block) error {
	// The users table is replaced wholesale, not merged: a user the
	// executor destroyed (life reaching 0) is absent from snap.Users and
	// must disappear from storage too, or a reconstructed snapshot would
	// carry ghosts the block's state_hash doesn't account for.
	if err := tx.Delete(&userRecord{}).Error; err != nil {
		return Storage("apply_snapshot user clear", err)
	}
	for _, u := range snap.Users {
		if err := s.upsertUser(tx, u); err != nil {
			return Storage("apply_snapshot user rewrite", err)
		}
	}

	if err := tx.Delete(&minerPoolRecord{}).Error; err != nil {
		return Storage("apply_snapshot miner pool clear", err)
	}
	for addr, entry := range snap.MinerPool {
		rec := minerPoolRecord{Address: string(addr), JoinedAt: entry.JoinedAt}
		if err := tx.Create(&rec).Error; err != nil {
			return Storage("apply_snapshot miner pool write", err)
		}
	}

	if snap.CurrentGroup != nil {
		if err := s.saveGroupTx(tx, snap.CurrentGroup); err != nil {
			return err
		}
	}

	for _, t := range snap.Executed {
		rec := txToExecutedRecord(block.BlockNumber, t)
		if err := tx.Create(&rec).Error; err != nil {
			return Storage("apply_snapshot tx_executed write", err)
		}
	}

	if err := s.appendBlockTx(tx, block); err != nil {
		return err
	}
	return nil
}

// invalidateAfterApply drops every cached user. A selective invalidation
// over snap.Users would miss addresses the executor destroyed, which are
// absent from snap.Users precisely because they no longer exist.
func (s *Store) invalidateAfterApply() {
	s.cache.Reset()
}

// SavePeer upserts a peer directory entry.
func (s *Store) SavePeer(p *model.Peer) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	rec := peerRecord{NodeID: p.NodeID, IP: p.IP, Port: p.Port, LastSeen: p.LastSeen}
	if err := s.db.Save(&rec).Error; err != nil {
		return Storage("save_peer", err)
	}
	return nil
}

// RemovePeer deletes a peer directory entry by node id.
func (s *Store) RemovePeer(nodeID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.db.Where("node_id = ?", nodeID).Delete(&peerRecord{}).Error; err != nil {
		return Storage("remove_peer", err)
	}
	return nil
}

// AllPeers returns every known peer.
func (s *Store) AllPeers() ([]*model.Peer, error) {
	var recs []peerRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, Storage("all_peers", err)
	}
	out := make([]*model.Peer, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &model.Peer{NodeID: rec.NodeID, IP: rec.IP, Port: rec.Port, LastSeen: rec.LastSeen})
	}
	return out, nil
}
