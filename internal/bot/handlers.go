package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// Callback data prefixes
const (
	callbackQueue        = "queue"
	callbackEntries      = "entries"
	callbackApproveRev   = "approve_rev_"
	callbackRejectRev    = "reject_rev_"
	callbackApproveEntry = "approve_entry_"
	callbackRejectEntry  = "reject_entry_"
)

// HandleMessage handles commands and free-text replies
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}
	chatID := message.Chat.ID

	if message.IsCommand() {
		// a new command abandons any pending prompt
		b.takeState(chatID)
		switch message.Command() {
		case "start", "help":
			return b.handleHelp(chatID)
		case "queue":
			return b.handleQueue(ctx, chatID)
		case "entries":
			return b.handleEntries(ctx, chatID)
		default:
			return b.reply(chatID, "Unknown command. Use /help to see what I can do.")
		}
	}

	st, ok := b.takeState(chatID)
	if !ok || st.State != stateAwaitingReason {
		return b.reply(chatID, "I don't understand. Use /queue to review pending changes.")
	}
	return b.handleReason(ctx, chatID, st, message.Text)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "📖 Lexicon moderation\n\n" +
		"/queue - pending revisions, most urgent first\n" +
		"/entries - new entries waiting for review\n" +
		"/help - show this message\n\n" +
		fmt.Sprintf("Your chat id is %d. Ask an admin to link it to your account:\n", chatID) +
		fmt.Sprintf("lexicon actor set <your-id> --chat-id %d", chatID)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	return b.sendMessage(msg)
}

func mainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "📝 Revisions", CallbackData: callbackQueue},
			{Text: "🆕 New entries", CallbackData: callbackEntries},
		},
	}
}

func (b *Bot) handleQueue(ctx context.Context, chatID int64) error {
	page, err := b.engine.ListPendingRevisions(ctx, models.PageRequest{Page: 1, Limit: pageSize})
	if err != nil {
		return err
	}
	if page.Total == 0 {
		return b.reply(chatID, "✅ No pending revisions")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 %d pending revisions\n\n", page.Total)
	targets := make([]target, 0, len(page.Items))
	for _, item := range page.Items {
		targets = append(targets, target{EntryID: item.Revision.EntryID, RevisionID: item.Revision.ID})
	}
	listingID := b.remember(chatID, targets)

	var buttons [][]MenuButton
	for i, item := range page.Items {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, item.Priority, describeRevision(item))
		if item.Anomaly != nil {
			fmt.Fprintf(&sb, "   ⚠️ %s\n", item.Anomaly.Detail)
			continue
		}
		buttons = append(buttons, []MenuButton{
			{Text: fmt.Sprintf("✅ Approve %d", i+1), CallbackData: revisionCallback(callbackApproveRev, listingID, i)},
			{Text: fmt.Sprintf("❌ Reject %d", i+1), CallbackData: revisionCallback(callbackRejectRev, listingID, i)},
		})
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	if len(buttons) > 0 {
		msg.ReplyMarkup = createKeyboard(buttons)
	}
	return b.sendMessage(msg)
}

// revisionCallback encodes a revision button as prefix + listing + "_" + index
func revisionCallback(prefix string, listingID, idx int) string {
	return prefix + strconv.Itoa(listingID) + "_" + strconv.Itoa(idx)
}

func parseRevisionCallback(s string) (listingID, idx int, err error) {
	l, i, ok := strings.Cut(s, "_")
	if !ok {
		return 0, 0, fmt.Errorf("invalid revision callback data %q", s)
	}
	if listingID, err = strconv.Atoi(l); err != nil {
		return 0, 0, fmt.Errorf("invalid listing in callback data: %w", err)
	}
	if idx, err = strconv.Atoi(i); err != nil {
		return 0, 0, fmt.Errorf("invalid revision index in callback data: %w", err)
	}
	return listingID, idx, nil
}

func describeRevision(item moderation.RevisionItem) string {
	headword := "(deleted entry)"
	if item.Entry != nil {
		headword = fmt.Sprintf("%s [%s]", item.Entry.Headword, item.Entry.LanguageID)
	}
	fields := make([]string, 0, len(item.Revision.Changes))
	for _, f := range item.Revision.Changes.Fields() {
		fields = append(fields, string(f))
	}
	return fmt.Sprintf("%s: %s by %s", headword, strings.Join(fields, ", "), item.Revision.SubmittedBy)
}

func (b *Bot) handleEntries(ctx context.Context, chatID int64) error {
	page, err := b.engine.ListPendingEntries(ctx, models.PageRequest{Page: 1, Limit: pageSize})
	if err != nil {
		return err
	}
	if page.Total == 0 {
		return b.reply(chatID, "✅ No new entries")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🆕 %d new entries\n\n", page.Total)
	var buttons [][]MenuButton
	for i, e := range page.Items {
		fmt.Fprintf(&sb, "%d. %s [%s] by %s\n", i+1, e.Headword, e.LanguageID, e.CreatedBy)
		for _, m := range e.Meanings {
			for _, d := range m.Definitions {
				fmt.Fprintf(&sb, "   (%s) %s\n", m.PartOfSpeech, d.Text)
			}
		}
		buttons = append(buttons, []MenuButton{
			{Text: fmt.Sprintf("✅ Approve %d", i+1), CallbackData: callbackApproveEntry + e.ID},
			{Text: fmt.Sprintf("❌ Reject %d", i+1), CallbackData: callbackRejectEntry + e.ID},
		})
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.sendMessage(msg)
}

// HandleCallback handles inline keyboard presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback == nil || callback.Message == nil || callback.Message.Chat == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always answer the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("failed to answer callback")
	}

	chatID := callback.Message.Chat.ID
	data := callback.Data
	switch {
	case data == callbackQueue:
		return b.handleQueue(ctx, chatID)
	case data == callbackEntries:
		return b.handleEntries(ctx, chatID)
	case strings.HasPrefix(data, callbackApproveRev), strings.HasPrefix(data, callbackRejectRev):
		approve := strings.HasPrefix(data, callbackApproveRev)
		listingID, idx, err := parseRevisionCallback(strings.TrimPrefix(strings.TrimPrefix(data, callbackApproveRev), callbackRejectRev))
		if err != nil {
			return err
		}
		t, ok := b.lookup(chatID, listingID, idx)
		if !ok {
			return b.reply(chatID, "This list is out of date. Use /queue to refresh it.")
		}
		if approve {
			return b.approveRevision(ctx, chatID, t)
		}
		b.setState(chatID, UserState{State: stateAwaitingReason, Target: t})
		return b.reply(chatID, "✍️ Send the reason for rejecting this revision.")
	case strings.HasPrefix(data, callbackApproveEntry):
		return b.moderateEntry(ctx, chatID, strings.TrimPrefix(data, callbackApproveEntry), moderation.VerdictApprove, "")
	case strings.HasPrefix(data, callbackRejectEntry):
		b.setState(chatID, UserState{
			State:     stateAwaitingReason,
			Target:    target{EntryID: strings.TrimPrefix(data, callbackRejectEntry)},
			EntryOnly: true,
		})
		return b.reply(chatID, "✍️ Send the reason for rejecting this entry.")
	}
	return b.reply(chatID, "⚠️ Unknown action")
}

func (b *Bot) handleReason(ctx context.Context, chatID int64, st UserState, reason string) error {
	if st.EntryOnly {
		return b.moderateEntry(ctx, chatID, st.Target.EntryID, moderation.VerdictReject, reason)
	}
	actor, err := b.linkedActor(ctx, chatID)
	if err != nil || actor == nil {
		return err
	}
	res, err := b.engine.RejectRevision(ctx, st.Target.EntryID, st.Target.RevisionID, *actor, reason)
	if err != nil {
		return b.replyError(chatID, err)
	}
	return b.reply(chatID, fmt.Sprintf("❌ Revision %s rejected", res.Revision.ID))
}

func (b *Bot) approveRevision(ctx context.Context, chatID int64, t target) error {
	actor, err := b.linkedActor(ctx, chatID)
	if err != nil || actor == nil {
		return err
	}
	res, err := b.engine.ApproveRevision(ctx, t.EntryID, t.RevisionID, *actor, "")
	if err != nil {
		return b.replyError(chatID, err)
	}
	text := fmt.Sprintf("✅ Revision %s approved", res.Revision.ID)
	if res.Entry != nil {
		text += fmt.Sprintf(", %s is now at version %d", res.Entry.Headword, res.Entry.Version)
	}
	return b.reply(chatID, text)
}

func (b *Bot) moderateEntry(ctx context.Context, chatID int64, entryID string, verdict moderation.Verdict, notes string) error {
	actor, err := b.linkedActor(ctx, chatID)
	if err != nil || actor == nil {
		return err
	}
	entry, err := b.engine.ModerateEntry(ctx, *actor, entryID, verdict, notes)
	if err != nil {
		return b.replyError(chatID, err)
	}
	return b.reply(chatID, fmt.Sprintf("Entry %s is now %s", entry.Headword, entry.Status))
}

// linkedActor resolves the chat's actor, telling the user when the chat is
// not linked. A nil actor with a nil error means the reply was sent.
func (b *Bot) linkedActor(ctx context.Context, chatID int64) (*models.Actor, error) {
	actor, err := b.actorFor(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, b.reply(chatID, fmt.Sprintf("🔒 This chat is not linked to an account. Your chat id is %d.", chatID))
	}
	return actor, nil
}

// replyError explains engine errors to the user; other errors are returned
func (b *Bot) replyError(chatID int64, err error) error {
	var text string
	switch moderation.KindOf(err) {
	case moderation.KindPermissionDenied:
		text = "⛔ " + moderation.PermissionReason(err)
	case moderation.KindNotFound:
		text = "🔍 Not found, it may have been deleted."
	case moderation.KindInvalidState:
		text = "ℹ️ Already resolved by someone else."
	case moderation.KindValidation:
		text = "⚠️ " + err.Error()
	default:
		if sendErr := b.reply(chatID, "❌ Something went wrong. Please try again later."); sendErr != nil {
			b.log.Warn().Err(sendErr).Msg("failed to send error reply")
		}
		return err
	}
	return b.reply(chatID, text)
}
