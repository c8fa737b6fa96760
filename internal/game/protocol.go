package game

// Server → client event names.
const (
	EventRoomState    = "roomState"
	EventGameState    = "gameState"
	EventStartGame    = "startGame"
	EventJoinSuccess  = "joinSuccess"
	EventCreateDenied = "createDenied"
	EventJoinDenied   = "joinDenied"
	EventHeroDenied   = "heroDenied"
	EventReadyDenied  = "readyDenied"
	EventStartDenied  = "startDenied"
)

// Client → server event names.
const (
	EventCreateRoom    = "createRoom"
	EventJoinRoom      = "joinRoom"
	EventSetPlayerName = "setPlayerName"
	EventSetWorld      = "setWorld"
	EventSetLevel      = "setLevel"
	EventSelectHero    = "selectHero"
	EventSetReady      = "setReady"
	EventStartGameNow  = "startGameNow"
	EventPlayerInput   = "playerInput"
	EventPlayerMove    = "playerMove"
)

// denial is the payload of every *Denied event.
type denial struct {
	Message string `json:"message"`
}

// joinSuccessPayload acknowledges a create or (re)join to the caller only.
type joinSuccessPayload struct {
	RoomCode    string `json:"roomCode"`
	PlayerID    string `json:"playerId"`
	PlayerIndex int    `json:"playerIndex"`
	Message     string `json:"message"`
}

// lobbyPlayerView is the lobby-facing shape of one player. Hero is null until
// the player picks one.
type lobbyPlayerView struct {
	Hero  interface{} `json:"hero"`
	Ready bool        `json:"ready"`
	Name  string      `json:"name"`
}

// roomStatePayload is emitted after every lobby-visible change.
type roomStatePayload struct {
	RoomCode   string                     `json:"roomCode"`
	MaxPlayers int                        `json:"maxPlayers"`
	HostID     string                     `json:"hostId"`
	Started    bool                       `json:"started"`
	World      int                        `json:"world"`
	Players    map[string]lobbyPlayerView `json:"players"`
}

func (r *Room) roomState() roomStatePayload {
	players := make(map[string]lobbyPlayerView, len(r.players))
	for id, lp := range r.players {
		view := lobbyPlayerView{Ready: lp.Ready, Name: lp.Name}
		if lp.Hero != "" {
			view.Hero = lp.Hero
		}
		players[id] = view
	}
	return roomStatePayload{
		RoomCode:   r.code,
		MaxPlayers: r.maxPlayers,
		HostID:     r.hostID,
		Started:    r.started,
		World:      r.world,
		Players:    players,
	}
}
