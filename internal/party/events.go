package party

// Inbound event names.
const (
	EventRequestNewGame       = "request-new-game"
	EventRequestJoinGame      = "request-join-game"
	EventDeclareName          = "declare-name"
	EventGuess                = "guess"
	EventRequestBeginGame     = "request-begin-game"
	EventCheckChosenWordValid = "check-chosen-word-valid"
	EventChooseWord           = "choose-word"
	EventStartOver            = "start-over"
	EventRequestValidWord     = "request-valid-word"
	EventSayHello             = "say-hello"
)

// Outbound event names.
const (
	EventUpdateGameState = "update-game-state"
	EventBeginGame       = "begin-game"
	EventEvaluation      = "evaluation"
	EventSession         = "session"
	EventAck             = "ack"
	EventError           = "error"
)
