package game

// Commands are parsed at the transport edge and handled one at a time by the
// owning room goroutine, strictly interleaved with tick steps.
type command interface{ isCommand() }

type createCmd struct {
	conn         Conn
	hostID       string
	name         string
	world        int
	canvasHeight float64
	hasCanvas    bool
}

type joinCmd struct {
	conn     Conn
	playerID string
	name     string
}

type setWorldCmd struct {
	conn  Conn
	world int
}

type setNameCmd struct {
	conn Conn
	name string
}

type selectHeroCmd struct {
	conn Conn
	hero string
}

type setReadyCmd struct {
	conn  Conn
	ready bool
}

type startCmd struct {
	conn Conn
}

type inputCmd struct {
	conn         Conn
	frame        InputFrame
	canvasHeight float64
	hasCanvas    bool
}

type disconnectCmd struct {
	conn Conn
}

// graceExpiredCmd is enqueued by the per-player reconnect timer.
type graceExpiredCmd struct {
	playerID string
}

func (createCmd) isCommand()       {}
func (joinCmd) isCommand()         {}
func (setWorldCmd) isCommand()     {}
func (setNameCmd) isCommand()      {}
func (selectHeroCmd) isCommand()   {}
func (setReadyCmd) isCommand()     {}
func (startCmd) isCommand()        {}
func (inputCmd) isCommand()        {}
func (disconnectCmd) isCommand()   {}
func (graceExpiredCmd) isCommand() {}
