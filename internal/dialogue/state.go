package dialogue

import "github.com/dyatelok/secret-santa/internal/models"

// Kind names a dialogue state. Sessions start in KindIdle; multi-step
// flows advance through their Get* states and fall back to Idle when
// they finish or fail.
type Kind int

const (
	KindIdle Kind = iota
	KindRegisterGetName
	KindUsernameGetName
	KindCreateGetName
	KindRunGetID
	KindRunConfirm
	KindJoinGetID
	KindLeaveGetID
	KindAcceptGetGameID
	KindAcceptGetUserID
	KindRemoveGetGameID
	KindRemoveGetUserID
	KindInfoGetID
)

// State is the tagged union held per session: the kind plus the game id
// payload carried by Run.Confirm, Accept.GetUserId and Remove.GetUserId.
type State struct {
	Kind   Kind
	GameID models.GameID
}

var idle = State{Kind: KindIdle}

// Command is a top-level command recognized by the transport. Token
// parsing from raw text stays outside the engine.
type Command string

const (
	CommandStart    Command = "start"
	CommandHelp     Command = "help"
	CommandUsername Command = "username"
	CommandCreate   Command = "create"
	CommandRun      Command = "run"
	CommandJoin     Command = "join"
	CommandLeave    Command = "leave"
	CommandList     Command = "list"
	CommandAccept   Command = "accept"
	CommandRemove   Command = "remove"
	CommandInfo     Command = "info"
	CommandCancel   Command = "cancel"
)
