// Package monitor glues the telegram transport to the dialogue engine:
// it recognizes command tokens in raw text, feeds the engine and sends
// whatever the engine decided to say.
package monitor

import (
	"context"
	"strings"

	"github.com/dyatelok/secret-santa/internal/config"
	"github.com/dyatelok/secret-santa/internal/dialogue"
	"github.com/dyatelok/secret-santa/internal/models"
	"gopkg.in/telebot.v4"
)

type Monitor struct {
	config *config.Config
	engine *dialogue.Engine
	bot    telebot.API
}

func New(cfg *config.Config, engine *dialogue.Engine, bot telebot.API) *Monitor {
	return &Monitor{
		config: cfg,
		engine: engine,
		bot:    bot,
	}
}

func (m *Monitor) HandleTextUpdate(c telebot.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.BotHandleTimeout)
	defer cancel()

	uc := NewUpdateContext(ctx, c)

	if c.Chat() == nil || c.Chat().Type != telebot.ChatPrivate {
		uc.L().Debugf("ignoring update from non-private chat")
		return nil
	}

	if c.Message() == nil {
		uc.L().Debugf("ignoring update without message")
		return nil
	}

	sess := models.UserID(c.Chat().ID)
	text := strings.TrimSpace(c.Text())

	var out []dialogue.Outgoing
	if cmd, ok := ParseCommand(text); ok {
		uc.L().Infof("user %d issued command /%s", sess, cmd)
		out = m.engine.HandleCommand(uc, sess, cmd, text)
	} else {
		uc.L().Debugf("user %d sent text input", sess)
		out = m.engine.HandleText(uc, sess, text)
	}

	m.dispatch(uc, out)
	return nil
}

func (m *Monitor) dispatch(uc *UpdateContext, out []dialogue.Outgoing) {
	for _, msg := range out {
		if _, err := m.bot.Send(telebot.ChatID(msg.To), msg.Text); err != nil {
			uc.L().Errorf("failed to send message to %d: %v", msg.To, err)
		}
	}
}

// ParseCommand recognizes a leading /command token, tolerating the
// @botname suffix some clients append.
func ParseCommand(text string) (dialogue.Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	token := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(token, '@'); i >= 0 {
		token = token[:i]
	}

	switch cmd := dialogue.Command(strings.ToLower(token)); cmd {
	case dialogue.CommandStart,
		dialogue.CommandHelp,
		dialogue.CommandUsername,
		dialogue.CommandCreate,
		dialogue.CommandRun,
		dialogue.CommandJoin,
		dialogue.CommandLeave,
		dialogue.CommandList,
		dialogue.CommandAccept,
		dialogue.CommandRemove,
		dialogue.CommandInfo,
		dialogue.CommandCancel:
		return cmd, true
	default:
		return "", false
	}
}
