// Package dialogue turns a per-session sequence of free-text messages
// into validated repository operations. One state slot is held per
// session in volatile memory; losing it on restart discards in-flight
// multi-step input only, never committed data.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dyatelok/secret-santa/internal/models"
	"github.com/dyatelok/secret-santa/internal/runner"
	"github.com/sirupsen/logrus"
)

// Outgoing is one message the transport must deliver. Most replies go to
// the session itself; running a game addresses every participant.
type Outgoing struct {
	To   models.UserID
	Text string
}

type Engine struct {
	runner *runner.Runner

	mu       sync.Mutex
	sessions map[models.UserID]State
}

func NewEngine(r *runner.Runner) *Engine {
	return &Engine{
		runner:   r,
		sessions: make(map[models.UserID]State),
	}
}

func (e *Engine) state(sess models.UserID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[sess]
}

func (e *Engine) setState(sess models.UserID, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.Kind == KindIdle {
		delete(e.sessions, sess)
		return
	}
	e.sessions[sess] = s
}

// HandleCommand processes a recognized top-level command. Cancel works
// from any state; any other command issued mid-flow falls through to the
// current state's own text handling, so two flows never silently merge.
func (e *Engine) HandleCommand(ctx context.Context, sess models.UserID, cmd Command, raw string) []Outgoing {
	if cmd == CommandCancel {
		return e.cancel(sess)
	}

	if e.state(sess).Kind != KindIdle {
		return e.HandleText(ctx, sess, raw)
	}

	switch cmd {
	case CommandStart:
		return e.startCmd(ctx, sess)
	case CommandHelp:
		return e.reply(sess, helpText)
	case CommandUsername:
		e.setState(sess, State{Kind: KindUsernameGetName})
		return e.reply(sess, "Please enter a new username.\nYou can /cancel")
	case CommandCreate:
		e.setState(sess, State{Kind: KindCreateGetName})
		return e.reply(sess, "Please enter name of the game.\nYou can /cancel")
	case CommandRun:
		return e.runCmd(ctx, sess)
	case CommandJoin:
		e.setState(sess, State{Kind: KindJoinGetID})
		return e.reply(sess, "Please enter id of the game you want to join.\nYou can /cancel")
	case CommandLeave:
		e.setState(sess, State{Kind: KindLeaveGetID})
		return e.reply(sess,
			"Please enter id of the game you want to leave.\n"+
				"You can /cancel\n"+
				"You will be able to rejoin this game.")
	case CommandList:
		return e.listCmd(ctx, sess)
	case CommandAccept:
		e.setState(sess, State{Kind: KindAcceptGetGameID})
		return e.reply(sess, "Please enter id of the game you want to manage.\nYou can /cancel")
	case CommandRemove:
		e.setState(sess, State{Kind: KindRemoveGetGameID})
		return e.reply(sess, "Please enter id of the game you want to manage.\nYou can /cancel")
	case CommandInfo:
		e.setState(sess, State{Kind: KindInfoGetID})
		return e.reply(sess, "Please enter id of the game you want to get info about.\nYou can /cancel")
	default:
		return e.reply(sess, unknownText)
	}
}

// HandleText processes free text against the session's current state.
func (e *Engine) HandleText(ctx context.Context, sess models.UserID, text string) []Outgoing {
	text = strings.TrimSpace(text)
	state := e.state(sess)

	// Blank input aborts data-entry states, but a run confirmation only
	// ends on /cancel or the exact phrase, so it re-prompts instead.
	if text == "" && state.Kind != KindIdle && state.Kind != KindRunConfirm {
		e.setState(sess, idle)
		return e.reply(sess, usageText)
	}

	switch state.Kind {
	case KindIdle:
		return e.reply(sess, unknownText)
	case KindRegisterGetName:
		return e.register(ctx, sess, text)
	case KindUsernameGetName:
		return e.username(ctx, sess, text)
	case KindCreateGetName:
		return e.create(ctx, sess, text)
	case KindRunGetID:
		return e.runGetID(ctx, sess, text)
	case KindRunConfirm:
		return e.runConfirm(ctx, sess, text, state.GameID)
	case KindJoinGetID:
		return e.join(ctx, sess, text)
	case KindLeaveGetID:
		return e.leave(ctx, sess, text)
	case KindAcceptGetGameID:
		return e.acceptGetGameID(ctx, sess, text)
	case KindAcceptGetUserID:
		return e.acceptGetUserID(ctx, sess, text, state.GameID)
	case KindRemoveGetGameID:
		return e.removeGetGameID(ctx, sess, text)
	case KindRemoveGetUserID:
		return e.removeGetUserID(ctx, sess, text, state.GameID)
	case KindInfoGetID:
		return e.info(ctx, sess, text)
	default:
		e.setState(sess, idle)
		return e.reply(sess, unknownText)
	}
}

func (e *Engine) cancel(sess models.UserID) []Outgoing {
	if e.state(sess).Kind == KindRegisterGetName {
		return e.reply(sess, "It's not possible to cancel the registration process.")
	}
	e.setState(sess, idle)
	return e.reply(sess, "Cancelling the dialogue.")
}

func (e *Engine) startCmd(ctx context.Context, sess models.UserID) []Outgoing {
	switch _, err := e.runner.GetUser(ctx, sess); {
	case err == nil:
		return e.reply(sess,
			"It looks like you're already registered.\n"+
				"You can change your username using /username\n"+
				"Use /help to get more info.")
	case errors.Is(err, runner.ErrUserNotFound):
		e.setState(sess, State{Kind: KindRegisterGetName})
		return e.reply(sess, "Let's start! How should I call you?")
	default:
		return e.storeFailure(sess, err)
	}
}

func (e *Engine) runCmd(ctx context.Context, sess models.UserID) []Outgoing {
	user, err := e.runner.GetUser(ctx, sess)
	if err != nil {
		if errors.Is(err, runner.ErrUserNotFound) {
			return e.reply(sess, notRegisteredText)
		}
		return e.storeFailure(sess, err)
	}

	var sb strings.Builder
	sb.WriteString(
		"Please enter id of the game you want to run\n" +
			"You can /cancel\n\n" +
			"Here are available options:\n")
	for _, id := range user.AdminGames {
		game, err := e.runner.GetGame(ctx, id)
		if err != nil {
			return e.storeFailure(sess, err)
		}
		sb.WriteString(game.String())
	}

	e.setState(sess, State{Kind: KindRunGetID})
	return e.reply(sess, sb.String())
}

func (e *Engine) listCmd(ctx context.Context, sess models.UserID) []Outgoing {
	user, err := e.runner.GetUser(ctx, sess)
	if err != nil {
		if errors.Is(err, runner.ErrUserNotFound) {
			return e.reply(sess, notRegisteredText)
		}
		return e.storeFailure(sess, err)
	}

	out := e.reply(sess, fmt.Sprintf("Hi, %s! Here's list of all your games:", user.Username))

	groups := []struct {
		title string
		empty string
		games []models.GameID
	}{
		{"Here are your pending games:\n\n", "There were no pending games found.", user.PendingGames},
		{"Here are your active games:\n\n", "There were no active games found.", user.ActiveGames},
		{"Here are your admin games:\n\n", "There were no admin games found.", user.AdminGames},
	}

	for _, group := range groups {
		if len(group.games) == 0 {
			out = append(out, Outgoing{To: sess, Text: group.empty})
			continue
		}
		var sb strings.Builder
		sb.WriteString(group.title)
		for _, id := range group.games {
			game, err := e.runner.GetGame(ctx, id)
			if err != nil {
				return e.storeFailure(sess, err)
			}
			sb.WriteString(game.String())
		}
		out = append(out, Outgoing{To: sess, Text: sb.String()})
	}

	return out
}

func (e *Engine) register(ctx context.Context, sess models.UserID, name string) []Outgoing {
	e.setState(sess, idle)

	if err := e.runner.RegisterUser(ctx, sess, name); err != nil {
		if errors.Is(err, runner.ErrUserExists) {
			return e.reply(sess,
				"It looks like you're already registered.\n"+
					"You can change your username using /username")
		}
		return e.storeFailure(sess, err)
	}

	return e.reply(sess, fmt.Sprintf(
		"Thanks for completing the registration, %s.\n"+
			"You can change your username using /username\n"+
			"Use /help to get more info.", name))
}

func (e *Engine) username(ctx context.Context, sess models.UserID, name string) []Outgoing {
	e.setState(sess, idle)

	if err := e.runner.ChangeUsername(ctx, sess, name); err != nil {
		if errors.Is(err, runner.ErrUserNotFound) {
			return e.reply(sess, notRegisteredText)
		}
		return e.storeFailure(sess, err)
	}

	return e.reply(sess, fmt.Sprintf("You've changed your username to %s.", name))
}

func (e *Engine) create(ctx context.Context, sess models.UserID, name string) []Outgoing {
	e.setState(sess, idle)

	id, err := e.runner.CreateGame(ctx, sess, name)
	if err != nil {
		if errors.Is(err, runner.ErrUserNotFound) {
			return e.reply(sess, notRegisteredText)
		}
		return e.storeFailure(sess, err)
	}

	out := e.reply(sess, fmt.Sprintf("You've created game named %s with game id %d", name, id))
	out = append(out, Outgoing{
		To: sess,
		Text: fmt.Sprintf(
			"To join game %s you have to use /join after registration and use %d.", name, id),
	})
	return out
}

func (e *Engine) runGetID(ctx context.Context, sess models.UserID, text string) []Outgoing {
	gameID, err := models.ParseGameID(text)
	if err != nil {
		e.setState(sess, idle)
		return e.reply(sess, usageText)
	}

	game, err := e.runner.GetGame(ctx, gameID)
	if err != nil {
		e.setState(sess, idle)
		if errors.Is(err, runner.ErrGameNotFound) {
			return e.reply(sess, "It looks like there's no such game")
		}
		return e.storeFailure(sess, err)
	}

	if game.Admin != sess {
		e.setState(sess, idle)
		return e.reply(sess, "It looks like you're not admin of this game")
	}

	e.setState(sess, State{Kind: KindRunConfirm, GameID: gameID})
	return e.reply(sess, fmt.Sprintf(
		"Please confirm that you're going to run game %s\n"+
			"This action is irreversible\n"+
			"Messages about who to give the gift to will be sent out instantly\n\n"+
			"To confirm please type `%s`\n"+
			"You can /cancel",
		game.Name, confirmPhrase(gameID)))
}

func (e *Engine) runConfirm(ctx context.Context, sess models.UserID, text string, gameID models.GameID) []Outgoing {
	if text != confirmPhrase(gameID) {
		// Stays in Confirm: only the exact phrase or /cancel leaves it.
		return e.reply(sess,
			"Text doesn't match confirmation statement.\nPlease retry or use /cancel")
	}

	e.setState(sess, idle)

	messages, err := e.runner.RunGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, runner.ErrGameNotFound) {
			return e.reply(sess, "It looks like there's no such game")
		}
		return e.storeFailure(sess, err)
	}

	out := e.reply(sess,
		"You've successfully ran this game.\n"+
			"Messages will be sent immediately\n"+
			"Thanks for using this bot!")
	for _, msg := range messages {
		out = append(out, Outgoing{To: msg.To, Text: msg.Text})
	}
	return out
}

func (e *Engine) join(ctx context.Context, sess models.UserID, text string) []Outgoing {
	e.setState(sess, idle)

	gameID, err := models.ParseGameID(text)
	if err != nil {
		return e.reply(sess, usageText)
	}

	if err := e.runner.RequestJoin(ctx, sess, gameID); err != nil {
		switch {
		case errors.Is(err, runner.ErrGameNotFound):
			return e.reply(sess, "It looks like there's no such game.\nPlease use /help")
		case errors.Is(err, runner.ErrUserNotFound):
			return e.reply(sess, notRegisteredText)
		case errors.Is(err, runner.ErrAlreadyInGame):
			return e.reply(sess, "It looks like you're already in this game.")
		default:
			return e.storeFailure(sess, err)
		}
	}

	return e.reply(sess,
		"You're now in the waiting list to this game.\n"+
			"Please wait until game administrator confirms you.\n"+
			"You can /leave to leave game and /list to list all your games.")
}

func (e *Engine) leave(ctx context.Context, sess models.UserID, text string) []Outgoing {
	e.setState(sess, idle)

	gameID, err := models.ParseGameID(text)
	if err != nil {
		return e.reply(sess, usageText)
	}

	if err := e.runner.Withdraw(ctx, sess, gameID); err != nil {
		switch {
		case errors.Is(err, runner.ErrGameNotFound):
			return e.reply(sess, "It looks like there's no such game.\nPlease use /help")
		case errors.Is(err, runner.ErrUserNotFound):
			return e.reply(sess, notRegisteredText)
		default:
			return e.storeFailure(sess, err)
		}
	}

	return e.reply(sess, "You've successfully left this game.")
}

func (e *Engine) acceptGetGameID(ctx context.Context, sess models.UserID, text string) []Outgoing {
	game, out := e.adminGame(ctx, sess, text)
	if out != nil {
		return out
	}

	var sb strings.Builder
	sb.WriteString("Here are all pending users:\n\n")
	if out := e.renderUsers(ctx, sess, &sb, game.PendingUsers); out != nil {
		return out
	}

	e.setState(sess, State{Kind: KindAcceptGetUserID, GameID: game.ID})
	return append(e.reply(sess, sb.String()),
		Outgoing{To: sess, Text: "Please send id of the user to accept."})
}

func (e *Engine) acceptGetUserID(ctx context.Context, sess models.UserID, text string, gameID models.GameID) []Outgoing {
	e.setState(sess, idle)

	userID, err := models.ParseUserID(text)
	if err != nil {
		return e.reply(sess, usageText)
	}

	if err := e.runner.Promote(ctx, userID, gameID); err != nil {
		switch {
		case errors.Is(err, runner.ErrGameNotFound):
			return e.reply(sess, "It looks like there's no such game.\nPlease use /help")
		case errors.Is(err, runner.ErrUserNotFound):
			return e.reply(sess, "It looks like there's no such user.")
		case errors.Is(err, runner.ErrNotPending):
			return e.reply(sess, "This user is not in the waiting list of this game.")
		default:
			return e.storeFailure(sess, err)
		}
	}

	return e.reply(sess, "You've accepted this user to the game.")
}

func (e *Engine) removeGetGameID(ctx context.Context, sess models.UserID, text string) []Outgoing {
	game, out := e.adminGame(ctx, sess, text)
	if out != nil {
		return out
	}

	var sb strings.Builder
	sb.WriteString("Here are all users:\n\nPending users:\n\n")
	if out := e.renderUsers(ctx, sess, &sb, game.PendingUsers); out != nil {
		return out
	}
	sb.WriteString("Active users:\n\n")
	if out := e.renderUsers(ctx, sess, &sb, game.ActiveUsers); out != nil {
		return out
	}

	e.setState(sess, State{Kind: KindRemoveGetUserID, GameID: game.ID})
	return append(e.reply(sess, sb.String()),
		Outgoing{To: sess, Text: "Please send id of the user to remove."})
}

func (e *Engine) removeGetUserID(ctx context.Context, sess models.UserID, text string, gameID models.GameID) []Outgoing {
	e.setState(sess, idle)

	userID, err := models.ParseUserID(text)
	if err != nil {
		return e.reply(sess, usageText)
	}

	if err := e.runner.Withdraw(ctx, userID, gameID); err != nil {
		switch {
		case errors.Is(err, runner.ErrGameNotFound):
			return e.reply(sess, "It looks like there's no such game.\nPlease use /help")
		case errors.Is(err, runner.ErrUserNotFound):
			return e.reply(sess, "It looks like there's no such user.")
		default:
			return e.storeFailure(sess, err)
		}
	}

	return e.reply(sess, "You've removed this user from the game.")
}

func (e *Engine) info(ctx context.Context, sess models.UserID, text string) []Outgoing {
	e.setState(sess, idle)

	gameID, err := models.ParseGameID(text)
	if err != nil {
		return e.reply(sess, usageText)
	}

	game, err := e.runner.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, runner.ErrGameNotFound) {
			return e.reply(sess, "It looks like there's no such game.\nPlease use /help")
		}
		return e.storeFailure(sess, err)
	}

	var sb strings.Builder
	sb.WriteString("Here is info about your game:\n\n")
	fmt.Fprintf(&sb, "Name: %s\n\n", game.Name)
	fmt.Fprintf(&sb, "Id: %d\n\n", game.ID)
	sb.WriteString("Active users:\n")
	if out := e.renderUsers(ctx, sess, &sb, game.ActiveUsers); out != nil {
		return out
	}
	sb.WriteString("\nPending users:\n")
	if out := e.renderUsers(ctx, sess, &sb, game.PendingUsers); out != nil {
		return out
	}

	return e.reply(sess, sb.String())
}

// adminGame parses a game id, loads the game and verifies the caller is
// its admin. A non-nil reply means the flow already failed and ended.
func (e *Engine) adminGame(ctx context.Context, sess models.UserID, text string) (*models.Game, []Outgoing) {
	gameID, err := models.ParseGameID(text)
	if err != nil {
		e.setState(sess, idle)
		return nil, e.reply(sess, usageText)
	}

	game, err := e.runner.GetGame(ctx, gameID)
	if err != nil {
		e.setState(sess, idle)
		if errors.Is(err, runner.ErrGameNotFound) {
			return nil, e.reply(sess, "It looks like there's no such game.\nPlease use /help")
		}
		return nil, e.storeFailure(sess, err)
	}

	if game.Admin != sess {
		e.setState(sess, idle)
		return nil, e.reply(sess, "It looks like you're not admin of this game")
	}

	return game, nil
}

func (e *Engine) renderUsers(ctx context.Context, sess models.UserID, sb *strings.Builder, ids []models.UserID) []Outgoing {
	for _, id := range ids {
		user, err := e.runner.GetUser(ctx, id)
		if err != nil {
			return e.storeFailure(sess, err)
		}
		sb.WriteString(user.String())
	}
	return nil
}

func (e *Engine) reply(sess models.UserID, text string) []Outgoing {
	return []Outgoing{{To: sess, Text: text}}
}

// storeFailure reports an unexpected store error to the user and resets
// the session; the half-typed flow is abandoned rather than resumed
// against unknown state.
func (e *Engine) storeFailure(sess models.UserID, err error) []Outgoing {
	logrus.WithField("session", sess).Errorf("store operation failed: %v", err)
	e.setState(sess, idle)
	return e.reply(sess, "Something went wrong, please try again.")
}

func confirmPhrase(id models.GameID) string {
	return fmt.Sprintf("Yes, I do want to run game %d", id)
}

const (
	unknownText       = "Unable to handle the message. Type /help to see the usage."
	usageText         = "Please use /help"
	notRegisteredText = "It looks like you're not registered. Please register with /start"

	helpText = "These commands are supported:\n\n" +
		"/start - please use this command to register if you haven't!\n" +
		"/help - display this text.\n" +
		"/username - changes your username.\n" +
		"/create - create a new secret santa event.\n" +
		"/run - run a secret santa game.\n" +
		"/join - join a secret santa event.\n" +
		"/leave - leave a secret santa event.\n" +
		"/list - list all your secret santa events.\n" +
		"/accept - accept someone to one of your games.\n" +
		"/remove - remove someone from one of your games.\n" +
		"/info - get info about one of your games.\n" +
		"/cancel - cancel operation."
)
