package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreledger/consensus-node/internal/codec"
	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/model"
)

// fakeBlockStore is an in-memory blockStore for tests that never needs a
// real database connection.
type fakeBlockStore struct {
	blocks map[uint64]*model.Block
	latest uint64
	empty  bool
}

func newFakeBlockStore() *fakeBlockStore {
	return &fakeBlockStore{blocks: make(map[uint64]*model.Block), empty: true}
}

func (f *fakeBlockStore) LatestBlock() (*model.Block, error) {
	if f.empty {
		return nil, nil
	}
	return f.blocks[f.latest], nil
}

func (f *fakeBlockStore) GetBlock(number uint64) (*model.Block, error) {
	return f.blocks[number], nil
}

func (f *fakeBlockStore) AppendBlock(b *model.Block) error {
	cp := *b
	f.blocks[b.BlockNumber] = &cp
	f.latest = b.BlockNumber
	f.empty = false
	return nil
}

func appendSignedBlock(t *testing.T, fs *fakeBlockStore, prev *model.Block, now int64) *model.Block {
	t.Helper()
	snap := model.Snapshot{Users: map[common.Address]*model.User{}}
	b := CreateBlock(prev, snap, common.Address("miner"), 0, nil, now)
	require.NoError(t, fs.AppendBlock(b))
	return b
}

func TestVerifySucceedsOnSingleBlockGenesisChain(t *testing.T) {
	fs := newFakeBlockStore()
	c := &Chain{store: fs}
	require.NoError(t, c.EnsureGenesis(1000))

	assert.NoError(t, c.Verify(0, 0))
}

func TestVerifySucceedsAcrossMultipleBlocks(t *testing.T) {
	fs := newFakeBlockStore()
	c := &Chain{store: fs}
	require.NoError(t, c.EnsureGenesis(1000))

	prev, err := fs.LatestBlock()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		prev = appendSignedBlock(t, fs, prev, 1000+int64(i)+1)
	}

	assert.NoError(t, c.Verify(0, 5))
}

func TestVerifyDetectsTamperedBlock(t *testing.T) {
	fs := newFakeBlockStore()
	c := &Chain{store: fs}
	require.NoError(t, c.EnsureGenesis(1000))

	prev, err := fs.LatestBlock()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		prev = appendSignedBlock(t, fs, prev, 1000+int64(i)+1)
	}

	tampered := *fs.blocks[5]
	tampered.StateHash = codec.ZeroHash
	fs.blocks[5] = &tampered

	err = c.Verify(0, 5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "block 5")
}

func TestVerifyDetectsBrokenPrevHashLink(t *testing.T) {
	fs := newFakeBlockStore()
	c := &Chain{store: fs}
	require.NoError(t, c.EnsureGenesis(1000))

	prev, err := fs.LatestBlock()
	require.NoError(t, err)
	prev = appendSignedBlock(t, fs, prev, 1001)
	_ = appendSignedBlock(t, fs, prev, 1002)

	tampered := *fs.blocks[2]
	tampered.PrevHash = "not-the-real-prev-hash"
	fs.blocks[2] = &tampered

	err = c.Verify(0, 2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "prev_hash mismatch")
}
