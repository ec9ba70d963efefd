package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// API is the part of the Telegram client used by the bot
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Moderator is the engine surface exposed to chat users
type Moderator interface {
	ListPendingEntries(ctx context.Context, req models.PageRequest) (models.Page[models.Entry], error)
	ListPendingRevisions(ctx context.Context, req models.PageRequest) (models.Page[moderation.RevisionItem], error)
	ApproveRevision(ctx context.Context, entryID, revisionID string, reviewer models.Actor, notes string) (*moderation.ReviewResult, error)
	RejectRevision(ctx context.Context, entryID, revisionID string, reviewer models.Actor, reason string) (*moderation.ReviewResult, error)
	ModerateEntry(ctx context.Context, actor models.Actor, entryID string, verdict moderation.Verdict, notes string) (*models.Entry, error)
}

// ActorDirectory resolves the actor linked to a chat
type ActorDirectory interface {
	FindByChatID(ctx context.Context, chatID int64) (*models.Actor, error)
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// target identifies a revision shown in a chat. Callback data is limited to
// 64 bytes, so buttons carry the listing number and an index into it instead.
type target struct {
	EntryID    string
	RevisionID string
}

// listing is the last revision list sent to a chat
type listing struct {
	id      int
	targets []target
}

// UserState represents a pending conversation step, such as waiting for a
// rejection reason
type UserState struct {
	State     string
	Target    target
	EntryOnly bool
	Timestamp time.Time
}

const (
	stateAwaitingReason = "awaiting_reason"

	// listing size shown per /queue or /entries
	pageSize = 5
	// reason prompts expire after this long
	stateTTL = 10 * time.Minute
)

// Bot lets linked moderators work the queue from Telegram
type Bot struct {
	api    API
	engine Moderator
	actors ActorDirectory
	log    zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	userStates map[int64]UserState
	shown      map[int64]listing
	listings   int
}

// New creates a bot around an authorized API client
func New(api API, engine Moderator, actors ActorDirectory, log zerolog.Logger) *Bot {
	return &Bot{
		api:        api,
		engine:     engine,
		actors:     actors,
		log:        log.With().Str("component", "bot").Logger(),
		now:        time.Now,
		userStates: make(map[int64]UserState),
		shown:      make(map[int64]listing),
	}
}

// NewFromToken authorizes against Telegram and creates the bot
func NewFromToken(token string, engine Moderator, actors ActorDirectory, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("authorized on telegram")
	return New(api, engine, actors, log), nil
}

// Start receives updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)
	defer b.api.StopReceivingUpdates()

	b.log.Info().Msg("bot started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("bot stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil:
		err = b.HandleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("failed to handle update")
	}
}

// actorFor resolves the actor linked to a chat, nil when unlinked
func (b *Bot) actorFor(ctx context.Context, chatID int64) (*models.Actor, error) {
	actor, err := b.actors.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor for chat %d: %w", chatID, err)
	}
	return actor, nil
}

func (b *Bot) setState(chatID int64, st UserState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st.Timestamp = b.now()
	b.userStates[chatID] = st
}

// takeState returns and clears a live conversation state
func (b *Bot) takeState(chatID int64) (UserState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.userStates[chatID]
	delete(b.userStates, chatID)
	if ok && b.now().Sub(st.Timestamp) > stateTTL {
		return UserState{}, false
	}
	return st, ok
}

// remember stores the targets shown to a chat and returns the listing number
// their buttons must carry.
func (b *Bot) remember(chatID int64, targets []target) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings++
	b.shown[chatID] = listing{id: b.listings, targets: targets}
	return b.listings
}

// lookup resolves a button press. Buttons from an older listing than the
// chat's latest no longer match.
func (b *Bot) lookup(chatID int64, listingID, idx int) (target, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.shown[chatID]
	if !ok || l.id != listingID || idx < 0 || idx >= len(l.targets) {
		return target{}, false
	}
	return l.targets[idx], true
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) reply(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return b.sendMessage(msg)
}
