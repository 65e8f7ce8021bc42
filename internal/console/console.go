// Package console is the interactive operator REPL: start, stop, status,
// peers, submit-tx, verify, ping against a running node, replacing the
// desktop GUI the original prototype shipped with a terminal-native
// equivalent.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/libreledger/consensus-node/internal/chain"
	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/consensus"
	"github.com/libreledger/consensus-node/internal/gossip"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/model"
	"github.com/libreledger/consensus-node/internal/store"
	"github.com/libreledger/consensus-node/internal/txpool"
)

var logger = log.NewModuleLogger(log.Console)

const historyFile = ".libre_console_history"
const pingTimeout = 3 * time.Second

// Console is the REPL's dependencies: everything a command might touch.
type Console struct {
	coordinator *consensus.Coordinator
	store       *store.Store
	chain       *chain.Chain
	pool        *txpool.Pool
	directory   *gossip.Directory
	transport   *gossip.Transport
	self        common.Address
}

// New builds a Console wired to a running node.
func New(co *consensus.Coordinator, s *store.Store, ch *chain.Chain, pool *txpool.Pool, dir *gossip.Directory, transport *gossip.Transport, self common.Address) *Console {
	return &Console{coordinator: co, store: s, chain: ch, pool: pool, directory: dir, transport: transport, self: self}
}

// Run drives the REPL against in/out until the user quits or the input
// stream closes.
func (c *Console) Run() {
	line := liner.NewLiner()
	defer line.Close()
	defer c.saveHistory(line)
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("libre> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return
		}
		if err != nil {
			logger.Errorw("console read error", "err", err)
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if !c.dispatch(input) {
			return
		}
	}
}

func (c *Console) dispatch(input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "start":
		c.coordinator.Start()
		fmt.Println("mining started")
	case "stop":
		c.coordinator.Stop()
		fmt.Println("mining stopped")
	case "status":
		c.printStatus()
	case "peers":
		c.printPeers()
	case "submit-tx":
		c.submitTx(args)
	case "verify":
		c.verify(args)
	case "ping":
		c.ping(args)
	case "quit", "exit":
		return false
	case "help":
		c.printHelp()
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
	return true
}

// verify accepts: verify [from] [to], defaulting to the whole local chain.
func (c *Console) verify(args []string) {
	from := uint64(0)
	to, err := c.store.BlockCount()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if to > 0 {
		to--
	}
	if len(args) >= 1 {
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Println("invalid from:", err)
			return
		}
		from = n
	}
	if len(args) >= 2 {
		n, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Println("invalid to:", err)
			return
		}
		to = int(n)
	}
	if err := c.chain.Verify(from, uint64(to)); err != nil {
		fmt.Println("invalid:", err)
		return
	}
	fmt.Printf("chain verified: blocks %d..%d\n", from, to)
}

// ping accepts: ping <ip> <port>, an explicit liveness probe outside the
// periodic PRESENCE loop.
func (c *Console) ping(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: ping <ip> <port>")
		return
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Println("invalid port:", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.transport.Ping(ctx, args[0], port); err != nil {
		fmt.Println("ping failed:", err)
		return
	}
	fmt.Println("ping sent")
}

func (c *Console) printStatus() {
	count, err := c.store.BlockCount()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("round state: %s\nblock count: %d\n", c.coordinator.State(), count)
}

func (c *Console) printPeers() {
	for _, p := range c.directory.All() {
		fmt.Printf("%s\t%s:%d\tlast_seen=%d\n", p.NodeID, p.IP, p.Port, p.LastSeen)
	}
}

// submitTx accepts: submit-tx transfer <to> <amount>
func (c *Console) submitTx(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: submit-tx transfer <to> <amount>")
		return
	}
	switch args[0] {
	case "transfer":
		if len(args) != 3 {
			fmt.Println("usage: submit-tx transfer <to> <amount>")
			return
		}
		amount, err := common.ParseAmount(args[2])
		if err != nil {
			fmt.Println("invalid amount:", err)
			return
		}
		tx := &model.Transaction{
			TxID:   fmt.Sprintf("%s-%s-%s-%d", c.self, args[1], args[2], time.Now().UnixNano()),
			Type:   model.TxTransfer,
			From:   c.self,
			To:     common.Address(args[1]),
			Amount: amount,
		}
		c.pool.Insert(tx)
		fmt.Println("queued", tx.TxID)
	default:
		fmt.Println("unsupported transaction type:", args[0])
	}
}

func (c *Console) saveHistory(line *liner.State) {
	f, err := os.Create(historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func (c *Console) printHelp() {
	fmt.Println(`commands: start, stop, status, peers, submit-tx transfer <to> <amount>, verify [from] [to], ping <ip> <port>, quit`)
}
