package session

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/quiz/events"
	"github.com/mcdev12/quizhub/go/internal/quiz/gateway"
	"github.com/mcdev12/quizhub/go/internal/quiz/room"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

const (
	maxNameLength = 20
	systemName    = "system"
	recordTimeout = 5 * time.Second
)

type commandKind int

const (
	commandAction commandKind = iota
	commandDisconnect
	commandClose
)

type command struct {
	kind   commandKind
	userID string
	msg    gateway.ClientMessage
	reason string
}

// Controller drives one room. Every command and timer expiry of the room is
// handled on its run goroutine, in arrival order.
type Controller struct {
	room  *room.Room
	timer *timer.Timer
	svc   *Service

	inbox  chan command
	done   chan struct{}
	cancel context.CancelFunc

	hostID    string
	hostWait  clockwork.Timer
	grading   bool
	closed    bool
	startedAt time.Time
}

func newController(r *room.Room, svc *Service) *Controller {
	c := &Controller{
		room:  r,
		timer: r.Timer(),
		svc:   svc,
		inbox: make(chan command, svc.cfg.InboxSize),
		done:  make(chan struct{}),
	}
	if d := svc.cfg.HostTimeout; d > 0 {
		c.hostWait = svc.clock.NewTimer(d)
	}
	return c
}

func (c *Controller) roomID() string {
	return c.room.ID()
}

// enqueue hands a command to the run goroutine. It returns false once the
// controller has stopped.
func (c *Controller) enqueue(cmd command) bool {
	select {
	case c.inbox <- cmd:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	log.Info().Str("room_id", c.roomID()).Msg("room controller started")
	defer log.Info().Str("room_id", c.roomID()).Msg("room controller stopped")

	var hostWait <-chan time.Time
	if c.hostWait != nil {
		defer c.hostWait.Stop()
		hostWait = c.hostWait.Chan()
	}

	expirations := c.timer.Expirations()
	for {
		select {
		case <-ctx.Done():
			c.timer.Stop()
			return
		case cmd := <-c.inbox:
			c.safely(func() { c.handle(cmd) })
		case exp := <-expirations:
			c.safely(func() { c.handleExpiry(exp) })
		case <-hostWait:
			hostWait = nil
			c.safely(c.handleHostTimeout)
		}
	}
}

// safely confines a panic to this room: it is logged and the room is closed.
func (c *Controller) safely(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Interface("panic", p).
				Str("room_id", c.roomID()).
				Str("state", c.room.State().String()).
				Msg("room handler panicked, closing room")
			c.closeRoom("internal error")
		}
	}()
	fn()
}

func (c *Controller) handle(cmd command) {
	if c.closed {
		return
	}

	switch cmd.kind {
	case commandDisconnect:
		c.handleLeave(cmd.userID)
		return
	case commandClose:
		c.closeRoom(cmd.reason)
		return
	}

	msg := cmd.msg
	var err error
	switch msg.Action {
	case gateway.ActionHost:
		err = c.handleHost(cmd.userID)
	case gateway.ActionJoin:
		err = c.handleJoin(cmd.userID, msg.Name)
	case gateway.ActionLeave:
		c.handleLeave(cmd.userID)
	case gateway.ActionChat:
		err = c.handleChat(cmd.userID, msg.Message)
	case gateway.ActionSubmit:
		err = c.handleSubmit(cmd.userID, msg)
	case gateway.ActionBan, gateway.ActionLock, gateway.ActionStart, gateway.ActionPause,
		gateway.ActionPanic, gateway.ActionGrade, gateway.ActionNext:
		if !c.room.IsHost(cmd.userID) {
			err = ErrNotHost
			break
		}
		err = c.handleHostAction(msg)
	default:
		err = ErrUnknownAction
	}

	if err != nil {
		c.reject(cmd.userID, msg.Action, err)
	}
}

func (c *Controller) handleHostAction(msg gateway.ClientMessage) error {
	switch msg.Action {
	case gateway.ActionBan:
		return c.handleBan(msg.Name)
	case gateway.ActionLock:
		c.handleLock()
	case gateway.ActionStart:
		return c.handleStart()
	case gateway.ActionPause:
		c.handlePause()
	case gateway.ActionPanic:
		return c.handlePanic()
	case gateway.ActionGrade:
		return c.handleGrade(msg.Grades)
	case gateway.ActionNext:
		c.handleNext()
	}
	return nil
}

func (c *Controller) reject(userID string, action gateway.Action, err error) {
	log.Debug().
		Err(err).
		Str("room_id", c.roomID()).
		Str("user_id", userID).
		Str("action", string(action)).
		Msg("command rejected")
	c.svc.bc.EmitToUser(c.roomID(), userID, gateway.EventTypeError, gateway.ErrorPayload{
		Action:  action,
		Message: err.Error(),
	})
}

func (c *Controller) handleHost(userID string) error {
	if c.room.IsActive(userID) {
		return ErrAlreadyJoined
	}
	if c.hostID != "" && c.room.IsActive(c.hostID) {
		return ErrHostTaken
	}
	if c.room.State() != room.StateWait {
		return ErrGameStarted
	}

	c.room.AddUser(room.User{ID: userID, Name: room.HostName})
	c.hostID = userID
	if c.hostWait != nil {
		c.hostWait.Stop()
	}
	c.sendJoined(userID, room.HostName, true)
	c.svc.bc.EmitToUser(c.roomID(), userID, gateway.EventTypeLobby, LobbyPayload{Locked: c.room.Locked()})
	c.broadcastPlayers()

	log.Info().Str("room_id", c.roomID()).Str("user_id", userID).Msg("host joined")
	return nil
}

// handleHostTimeout closes a room whose host never arrived.
func (c *Controller) handleHostTimeout() {
	if c.closed || c.hostID != "" {
		return
	}
	log.Info().Str("room_id", c.roomID()).Dur("timeout", c.svc.cfg.HostTimeout).Msg("no host joined")
	c.closeRoom("no host")
}

func (c *Controller) handleJoin(userID, name string) error {
	name = strings.TrimSpace(name)

	if c.room.IsActive(userID) {
		return ErrAlreadyJoined
	}
	if c.room.State() != room.StateWait {
		return ErrGameStarted
	}
	if name == "" || strings.EqualFold(name, room.HostName) || strings.EqualFold(name, systemName) ||
		utf8.RuneCountInString(name) > maxNameLength {
		return ErrInvalidName
	}
	if c.room.Locked() {
		return ErrRoomLocked
	}
	if c.room.IsBanned(name) {
		return ErrNameBanned
	}
	if c.room.UserExists(name) {
		return ErrNameTaken
	}

	c.room.AddUser(room.User{ID: userID, Name: name})
	c.sendJoined(userID, name, false)
	c.systemMessage(fmt.Sprintf("%s joined the game", name))
	c.broadcastPlayers()

	log.Info().Str("room_id", c.roomID()).Str("user_id", userID).Str("name", name).Msg("player joined")
	return nil
}

func (c *Controller) handleLeave(userID string) {
	u, ok := c.room.User(userID)
	if !ok || !c.room.IsActive(userID) {
		return
	}

	c.room.RemoveUser(userID)
	c.svc.bc.Disconnect(c.roomID(), userID)

	if u.Name == room.HostName {
		c.closeRoom("host left")
		return
	}

	log.Info().Str("room_id", c.roomID()).Str("user_id", userID).Str("name", u.Name).Msg("player left")
	c.systemMessage(fmt.Sprintf("%s left the game", u.Name))
	c.broadcastPlayers()

	state := c.room.State()
	if state == room.StateWait {
		return
	}
	if c.room.IsAbandoned() {
		c.closeRoom("all players left")
		return
	}
	if state == room.StateAskingQuestion && c.room.AllAnswered() {
		c.endQuestion()
	}
}

func (c *Controller) handleChat(userID, text string) error {
	u, ok := c.room.User(userID)
	if !ok || !c.room.IsActive(userID) {
		return ErrNotJoined
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit := c.svc.cfg.MaxChatLength; limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}

	c.svc.bc.EmitChatMessage(c.roomID(), models.ChatMessage{
		Name:      u.Name,
		Message:   text,
		Timestamp: c.svc.clock.Now(),
	})
	return nil
}

func (c *Controller) handleBan(name string) error {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, room.HostName) {
		return ErrInvalidName
	}

	userID, ok := c.room.BanUser(name)
	if !ok {
		return nil
	}

	u, _ := c.room.User(userID)
	c.room.RemoveUser(userID)
	c.svc.bc.EmitToUser(c.roomID(), userID, gateway.EventTypeBanned, BannedPayload{Reason: "banned by the host"})
	c.svc.bc.Disconnect(c.roomID(), userID)
	c.systemMessage(fmt.Sprintf("%s was banned", u.Name))
	c.broadcastPlayers()

	log.Info().Str("room_id", c.roomID()).Str("user_id", userID).Str("name", u.Name).Msg("player banned")
	return nil
}

func (c *Controller) handleLock() {
	locked := c.room.ToggleLock()
	c.svc.bc.EmitToRoom(c.roomID(), gateway.EventTypeLobby, LobbyPayload{Locked: locked})
}

func (c *Controller) handleStart() error {
	if c.room.State() != room.StateWait {
		return nil
	}
	players := c.room.ActivePlayers()
	if len(players) == 0 {
		return ErrNoPlayers
	}

	game := c.room.Game()
	if delay := c.svc.cfg.StartDelay; delay > 0 {
		if _, ok := c.room.Transition(room.StateStarting); !ok {
			return nil
		}
		c.gameStarted(game, len(players))
		c.emitState(room.StateStarting, StartingPayload{Title: game.Title, Seconds: delay})
		c.timer.Start(delay)
		return nil
	}

	if c.room.StartGame() == room.StateAskingQuestion {
		c.gameStarted(game, len(players))
		c.beginQuestion()
	}
	return nil
}

func (c *Controller) gameStarted(game *models.Game, players int) {
	c.startedAt = c.svc.clock.Now()
	c.svc.events.Emit(events.EventTypeGameStarted, c.roomID(), events.GameStartedPayload{
		GameID:  game.ID,
		Players: players,
	})
	log.Info().Str("room_id", c.roomID()).Int("players", players).Msg("game started")
}

func (c *Controller) handleExpiry(exp timer.Expiry) {
	if c.closed {
		return
	}
	if exp.Generation != c.timer.Generation() {
		log.Debug().Str("room_id", c.roomID()).Uint64("generation", exp.Generation).Msg("stale timer expiry ignored")
		return
	}

	switch c.room.State() {
	case room.StateStarting:
		if _, ok := c.room.Transition(room.StateAskingQuestion); ok {
			c.beginQuestion()
		}
	case room.StateAskingQuestion:
		c.endQuestion()
	}
}

func (c *Controller) beginQuestion() {
	c.room.ResetAnswers()
	q := c.room.CurrentQuestion(false)
	duration := c.questionDuration(q)

	c.emitState(room.StateAskingQuestion, QuestionPayload{
		Question: q,
		Index:    c.room.QuestionIndex(),
		Total:    c.room.QuestionCount(),
		Duration: duration,
	})
	c.broadcastPlayers()
	c.timer.Start(duration)
}

func (c *Controller) questionDuration(q models.Question) int {
	if q.Type == models.QuestionTypeQRL {
		return c.svc.cfg.QRLDuration
	}
	return c.room.Game().Duration
}

func (c *Controller) handleSubmit(userID string, msg gateway.ClientMessage) error {
	if c.room.State() != room.StateAskingQuestion {
		return nil
	}
	if c.room.IsHost(userID) {
		return ErrNotPlayer
	}
	u, ok := c.room.User(userID)
	if !ok || !c.room.IsActive(userID) {
		return ErrNotJoined
	}
	if u.HasAnswered() {
		return nil
	}

	q := c.room.CurrentQuestion(false)
	now := c.svc.clock.Now()
	switch q.Type {
	case models.QuestionTypeQCM:
		if len(msg.Choices) != len(q.Choices) {
			return ErrInvalidAnswer
		}
		c.room.Submit(userID, msg.Choices, now)
		if c.hostID != "" {
			c.svc.bc.EmitToUser(c.roomID(), c.hostID, gateway.EventTypeHistogram, HistogramPayload{Counts: c.room.Histogram()})
		}
	case models.QuestionTypeQRL:
		c.room.SubmitText(userID, strings.TrimSpace(msg.Text), now)
	}

	c.broadcastPlayers()
	if c.room.AllAnswered() {
		c.endQuestion()
	}
	return nil
}

func (c *Controller) endQuestion() {
	c.timer.Stop()
	if _, ok := c.room.Transition(room.StateWaitingResults); !ok {
		return
	}
	c.emitState(room.StateWaitingResults, nil)

	q := c.room.CurrentQuestion(true)
	if q.Type == models.QuestionTypeQRL {
		c.requestGrades(q)
		return
	}

	c.scoreQCM(q)
	c.svc.bc.EmitToRoom(c.roomID(), gateway.EventTypeHistogram, HistogramPayload{Counts: c.room.Histogram()})
	c.publishResults(q.CorrectVector())
}

// scoreQCM credits every correct answer. The single fastest correct answer
// earns the bonus instead; a tie for fastest earns no bonus.
func (c *Controller) scoreQCM(q models.Question) {
	correct := q.CorrectVector()
	points := float64(q.Points)

	var winners []room.User
	for _, p := range c.room.Players() {
		if p.HasAnswered() && c.room.IsCorrect(p.ID, correct) {
			winners = append(winners, p)
		}
	}

	fastest := fastestAnswer(winners)
	for _, w := range winners {
		if w.ID == fastest {
			c.room.AwardBonus(w.ID, points)
			continue
		}
		c.room.AwardScore(w.ID, points)
	}
}

func fastestAnswer(users []room.User) string {
	var (
		bestID string
		best   time.Time
		tie    bool
	)
	for _, u := range users {
		ts := *u.AnswerTimestamp
		switch {
		case bestID == "" || ts.Before(best):
			bestID, best, tie = u.ID, ts, false
		case ts.Equal(best):
			tie = true
		}
	}
	if tie {
		return ""
	}
	return bestID
}

func (c *Controller) requestGrades(q models.Question) {
	c.grading = true

	var answers []GradingAnswer
	for _, p := range c.room.Players() {
		if p.HasAnswered() {
			answers = append(answers, GradingAnswer{Name: p.Name, Text: p.TextAnswer})
		}
	}
	c.svc.bc.EmitToUser(c.roomID(), c.hostID, gateway.EventTypeGrading, GradingPayload{
		Question: q.Text,
		Points:   q.Points,
		Answers:  answers,
	})
}

func (c *Controller) handleGrade(grades map[string]int) error {
	if c.room.State() != room.StateWaitingResults || !c.grading {
		return nil
	}
	for _, grade := range grades {
		if grade != 0 && grade != 50 && grade != 100 {
			return ErrInvalidGrade
		}
	}

	q := c.room.CurrentQuestion(true)
	for _, p := range c.room.Players() {
		if !p.HasAnswered() {
			continue
		}
		if grade, ok := grades[p.Name]; ok && grade > 0 {
			c.room.AwardScore(p.ID, float64(q.Points)*float64(grade)/100)
		}
	}

	c.grading = false
	c.publishResults(nil)
	return nil
}

func (c *Controller) publishResults(correct []bool) {
	next := room.StateShowResults
	if c.room.IsLastQuestion() {
		next = room.StateLastQuestion
	}
	if _, ok := c.room.Transition(next); !ok {
		return
	}

	var payload any
	if correct != nil {
		payload = correct
	}
	c.emitState(next, payload)
	c.svc.bc.EmitToRoom(c.roomID(), gateway.EventTypeScores, ScoresPayload{Scores: c.room.FinalScores()})
}

func (c *Controller) handlePause() {
	if c.room.State() != room.StateAskingQuestion {
		return
	}
	paused := c.timer.Toggle()
	log.Debug().Str("room_id", c.roomID()).Bool("paused", paused).Msg("timer toggled")
}

func (c *Controller) handlePanic() error {
	if c.room.State() != room.StateAskingQuestion {
		return nil
	}

	minimum := c.svc.cfg.PanicMinQCM
	if c.room.CurrentQuestion(false).Type == models.QuestionTypeQRL {
		minimum = c.svc.cfg.PanicMinQRL
	}
	if c.timer.Seconds() < minimum {
		return ErrPanicTooLate
	}

	if c.timer.StartPanic() {
		log.Debug().Str("room_id", c.roomID()).Int("seconds", c.timer.Seconds()).Msg("panic mode started")
	}
	return nil
}

func (c *Controller) handleNext() {
	switch c.room.State() {
	case room.StateShowResults:
		c.room.AdvanceQuestion()
		if _, ok := c.room.Transition(room.StateAskingQuestion); ok {
			c.beginQuestion()
		}
	case room.StateLastQuestion:
		if _, ok := c.room.Transition(room.StateShowFinalResults); ok {
			c.emitState(room.StateShowFinalResults, ScoresPayload{Scores: c.room.FinalScores()})
		}
	case room.StateShowFinalResults:
		c.finishGame()
	}
}

func (c *Controller) finishGame() {
	if _, ok := c.room.Transition(room.StateGameOver); !ok {
		return
	}

	scores := c.room.FinalScores()
	c.emitState(room.StateGameOver, ScoresPayload{Scores: scores})

	game := c.room.Game()
	result := models.GameResult{
		RoomID:    c.roomID(),
		GameID:    game.ID,
		GameTitle: game.Title,
		StartedAt: c.startedAt,
		EndedAt:   c.svc.clock.Now(),
		Scores:    scores,
	}
	c.svc.events.Emit(events.EventTypeGameOver, c.roomID(), result)

	if c.svc.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.svc.recorder.Record(ctx, result); err != nil {
			log.Error().Err(err).Str("room_id", c.roomID()).Msg("failed to record game result")
		}
	}

	log.Info().Str("room_id", c.roomID()).Int("players", len(scores)).Msg("game over")
}

// closeRoom tells every socket the room is gone and removes it from the manager.
func (c *Controller) closeRoom(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.timer.Stop()

	if c.room.State() != room.StateGameOver {
		c.room.Transition(room.StateGameOver)
	}
	c.svc.bc.EmitToRoom(c.roomID(), gateway.EventTypeRoomClosed, RoomClosedPayload{Reason: reason})

	log.Info().Str("room_id", c.roomID()).Str("reason", reason).Msg("closing room")
	c.svc.manager.RemoveRoom(c.roomID())
}

func (c *Controller) emitState(state room.State, payload any) {
	c.svc.bc.EmitStateChange(c.roomID(), gateway.StateChange{State: state.String(), Payload: payload})
}

func (c *Controller) sendJoined(userID, name string, isHost bool) {
	c.svc.bc.EmitToUser(c.roomID(), userID, gateway.EventTypeJoined, gateway.JoinedPayload{
		UserID:  userID,
		Name:    name,
		RoomID:  c.roomID(),
		IsHost:  isHost,
		Title:   c.room.Game().Title,
		History: c.svc.bc.History(c.roomID()),
	})
}

func (c *Controller) systemMessage(text string) {
	c.svc.bc.EmitChatMessage(c.roomID(), models.ChatMessage{
		Name:      systemName,
		Message:   text,
		Timestamp: c.svc.clock.Now(),
	})
}

func (c *Controller) broadcastPlayers() {
	active := c.room.ActivePlayers()
	players := make([]PlayerInfo, 0, len(active))
	for _, p := range active {
		players = append(players, PlayerInfo{Name: p.Name, Score: p.Score, Answered: p.HasAnswered()})
	}
	c.svc.bc.EmitToRoom(c.roomID(), gateway.EventTypePlayers, PlayersPayload{Players: players})
}
