package chatmon

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// screen is which pane the model currently renders.
type screen int

const (
	screenRoomList screen = iota
	screenChat
)

// eventMsg wraps one asynchronous server push (chat update, or the
// background reader's terminal error) for delivery through tea.Cmd.
type eventMsg struct {
	evt Event
	err error
}

// roomsMsg carries the result of an initial or refreshed ROOMS/LIST call.
type roomsMsg struct {
	rooms []string
	err   error
}

// joinedMsg carries the result of a ROOMS/JOIN call.
type joinedMsg struct {
	room string
	log  []string
	err  error
}

// Model is the bubbletea model for the chatmon operator client. It never
// sends ordinary client requests from inside Update's goroutine except in
// direct response to a key press — the background event reader runs on
// its own goroutine and feeds eventCh, decoupling slow/blocking network
// reads from the UI loop.
type Model struct {
	client  *Client
	eventCh chan eventMsg

	screen screen
	width  int
	height int

	rooms      []string
	roomCursor int
	roomsErr   error

	feed     viewport.Model
	input    textinput.Model
	lines    []string
	statusErr string
}

// NewModel returns a Model ready to run against an already-logged-in
// Client. It starts the background event-reader goroutine that feeds the
// model's event channel; the goroutine exits once client's connection is
// closed and ReadEvent returns an error.
func NewModel(client *Client) Model {
	ti := textinput.New()
	ti.Placeholder = "type a message, Enter to send"
	ti.CharLimit = 150
	ti.Width = 60

	fv := viewport.New(80, 20)

	ch := make(chan eventMsg)
	go pumpEvents(client, ch)

	return Model{
		client:  client,
		eventCh: ch,
		screen:  screenRoomList,
		feed:    fv,
		input:   ti,
	}
}

// pumpEvents runs on its own goroutine, forwarding every CHAT UPDATE (or
// the first terminal read error) from client onto ch until it closes.
func pumpEvents(client *Client, ch chan eventMsg) {
	for {
		evt, err := client.ReadEvent()
		ch <- eventMsg{evt: evt, err: err}
		if err != nil {
			return
		}
	}
}

// waitForEvent returns a tea.Cmd that blocks for the next item on m's
// event channel. Re-issued after every event so the read loop never
// stalls the UI.
func waitForEvent(ch chan eventMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// fetchRooms returns a tea.Cmd that calls ROOMS/LIST.
func fetchRooms(client *Client) tea.Cmd {
	return func() tea.Msg {
		rooms, err := client.ListRooms()
		return roomsMsg{rooms: rooms, err: err}
	}
}

// joinRoom returns a tea.Cmd that calls ROOMS/JOIN for name.
func joinRoom(client *Client, name string) tea.Cmd {
	return func() tea.Msg {
		log, err := client.JoinRoom(name)
		return joinedMsg{room: name, log: log, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchRooms(m.client), waitForEvent(m.eventCh))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.feed.Width = msg.Width - 4
		m.feed.Height = msg.Height - 6
		m.input.Width = msg.Width - 4
		return m, nil

	case roomsMsg:
		m.rooms = msg.rooms
		m.roomsErr = msg.err
		return m, nil

	case joinedMsg:
		if msg.err != nil {
			m.statusErr = msg.err.Error()
			return m, nil
		}
		m.screen = screenChat
		m.lines = nil
		for _, line := range msg.log {
			m.lines = append(m.lines, peerMessageStyle.Render(line))
		}
		m.feed.SetContent(renderLines(m.lines))
		m.feed.GotoBottom()
		m.input.Focus()
		return m, nil

	case eventMsg:
		if msg.err != nil {
			m.statusErr = fmt.Sprintf("connection lost: %v", msg.err)
			return m, nil
		}
		m.appendEvent(msg.evt)
		return m, waitForEvent(m.eventCh)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) appendEvent(evt Event) {
	line := fmt.Sprintf("%s>%s", evt.Sender, evt.Message)
	m.lines = append(m.lines, peerMessageStyle.Render(line))
	m.feed.SetContent(renderLines(m.lines))
	m.feed.GotoBottom()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenRoomList:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.roomCursor > 0 {
				m.roomCursor--
			}
		case "down", "j":
			if m.roomCursor < len(m.rooms)-1 {
				m.roomCursor++
			}
		case "r":
			return m, fetchRooms(m.client)
		case "enter":
			if len(m.rooms) == 0 {
				return m, nil
			}
			name := m.rooms[m.roomCursor]
			return m, joinRoom(m.client, name)
		}
		return m, nil

	case screenChat:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			_ = m.client.Leave()
			m.screen = screenRoomList
			m.input.Blur()
			return m, fetchRooms(m.client)
		case "enter":
			text := m.input.Value()
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			if err := m.client.SendChat(text); err != nil {
				m.statusErr = err.Error()
				return m, nil
			}
			line := fmt.Sprintf("%s>%s", m.client.Username, text)
			m.lines = append(m.lines, selfMessageStyle.Render(line))
			m.feed.SetContent(renderLines(m.lines))
			m.feed.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var body string
	switch m.screen {
	case screenRoomList:
		body = m.viewRoomList()
	case screenChat:
		body = m.viewChat()
	}
	if m.statusErr != "" {
		body += "\n" + errorStyle.Render("error: "+m.statusErr)
	}
	return body
}

func (m Model) viewRoomList() string {
	title := titleStyle.Render("Rooms")
	if m.roomsErr != nil {
		return title + "\n" + errorStyle.Render(m.roomsErr.Error())
	}
	if len(m.rooms) == 0 {
		return title + "\n" + systemStyle.Render("no rooms yet — press r to refresh") +
			"\n" + helpStyle.Render("q: quit   r: refresh")
	}
	var out string
	for i, name := range m.rooms {
		line := "  " + name
		if i == m.roomCursor {
			line = lipgloss.NewStyle().Bold(true).Foreground(colorTitle).Render("> " + name)
		}
		out += line + "\n"
	}
	return title + "\n" + out + helpStyle.Render("enter: join   r: refresh   q: quit")
}

func (m Model) viewChat() string {
	title := titleStyle.Render("Room: " + m.client.Room)
	feed := feedBorderStyle.Render(m.feed.View())
	prompt := inputPromptStyle.Render("> ") + m.input.View()
	help := helpStyle.Render("enter: send   esc: leave room   ctrl+c: quit")
	return title + "\n" + feed + "\n" + prompt + "\n" + help
}

func renderLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
