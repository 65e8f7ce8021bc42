package txpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/libreledger/consensus-node/internal/model"
)

func TestInsertDedupesByTxID(t *testing.T) {
	p := New()
	p.Insert(&model.Transaction{TxID: "aa", Amount: model.RewardAmount})
	p.Insert(&model.Transaction{TxID: "aa", Amount: model.RewardAmount.Add(model.RewardAmount)})
	assert.Equal(t, 1, p.Len())
}

func TestDrainOrderedIsAscendingAndNondestructive(t *testing.T) {
	p := New()
	p.Insert(&model.Transaction{TxID: "bb"})
	p.Insert(&model.Transaction{TxID: "aa"})
	p.Insert(&model.Transaction{TxID: "cc"})

	out := p.DrainOrdered()
	assert.Equal(t, []string{"aa", "bb", "cc"}, []string{out[0].TxID, out[1].TxID, out[2].TxID})
	assert.Equal(t, 3, p.Len())
}

func TestClearEmptiesPool(t *testing.T) {
	p := New()
	p.Insert(&model.Transaction{TxID: "aa"})
	p.Clear()
	assert.Equal(t, 0, p.Len())
}
