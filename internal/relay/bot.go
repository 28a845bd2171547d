package relay

import (
	"context"
	"sync"
	"time"

	"github.com/metcalfc/commonplace/internal/logger"
)

// Event is a room event as pushed by the homeserver.
type Event struct {
	EventID        string  `json:"event_id"`
	RoomID         string  `json:"room_id"`
	Type           string  `json:"type"`
	Sender         string  `json:"sender"`
	OriginServerTS int64   `json:"origin_server_ts"`
	Content        Content `json:"content"`
}

type Content struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// Poster delivers one message to the ingestion endpoint.
type Poster interface {
	Post(ctx context.Context, msg Message) (Result, error)
}

type BotConfig struct {
	RoomID           string
	BotUserID        string
	DefaultRecipient string
	// Start is when the bot came up. Older events are ignored.
	Start time.Time
}

// maxSeenTxns bounds the transaction IDs remembered for deduplication.
const maxSeenTxns = 1024

type Bot struct {
	cfg    BotConfig
	poster Poster
	log    *logger.Logger

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewBot(cfg BotConfig, poster Poster, log *logger.Logger) *Bot {
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{
		cfg:    cfg,
		poster: poster,
		log:    log.With("service", "relay"),
		seen:   make(map[string]struct{}),
	}
}

// Accept keeps text messages posted in the watched room by someone other
// than the bot, since the bot started.
func (b *Bot) Accept(ev Event) bool {
	switch {
	case ev.RoomID != b.cfg.RoomID:
		return false
	case ev.Type != "m.room.message":
		return false
	case ev.Content.MsgType != "m.text":
		return false
	case ev.OriginServerTS < b.cfg.Start.UnixMilli():
		return false
	case ev.Sender == b.cfg.BotUserID:
		return false
	}
	return true
}

// HandleTransaction forwards the accepted events of one homeserver
// transaction, in order. A transaction ID seen before is skipped. Delivery
// failures are logged; the homeserver is never asked to resend.
func (b *Bot) HandleTransaction(ctx context.Context, txnID string, events []Event) {
	if !b.markSeen(txnID) {
		b.log.Debug("duplicate transaction", "txn_id", txnID)
		return
	}

	for _, ev := range events {
		if !b.Accept(ev) {
			continue
		}
		recipient := Recipient(ev.Content.Body, b.cfg.DefaultRecipient)
		b.log.Info("relaying message",
			"txn_id", txnID,
			"event_id", ev.EventID,
			"sender", ev.Sender,
			"recipient", recipient,
			"mention", HasMention(ev.Content.Body),
		)

		res, err := b.poster.Post(ctx, Message{
			Message: ev.Content.Body,
			Sender:  ev.Sender,
			Room:    ev.RoomID,
		})
		if err != nil {
			b.log.Error("relay failed", "event_id", ev.EventID, "error", err)
			continue
		}
		b.log.Info("relayed", "event_id", ev.EventID, "author", res.Author, "work", res.WorkTitle())
	}
}

func (b *Bot) markSeen(txnID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[txnID]; ok {
		return false
	}
	b.seen[txnID] = struct{}{}
	b.order = append(b.order, txnID)
	if len(b.order) > maxSeenTxns {
		delete(b.seen, b.order[0])
		b.order = b.order[1:]
	}
	return true
}
