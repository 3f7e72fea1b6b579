package ledc

import "sync"

// Sim is an in-memory Peripheral. Besides tests it backs `backend: sim`
// for running the panel on a machine without PWM hardware.
type Sim struct {
	*controller
	mem *memOutput
}

func NewSim() *Sim {
	m := &memOutput{duty: make(map[int]uint32), live: make(map[int]bool)}
	return &Sim{controller: newController(m), mem: m}
}

// Writes returns every duty value written to ch, oldest first.
func (s *Sim) Writes(ch int) []uint32 {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	return append([]uint32(nil), s.mem.history[ch]...)
}

// Output reports the last duty written to ch and whether ch is driving.
func (s *Sim) Output(ch int) (uint32, bool) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	return s.mem.duty[ch], s.mem.live[ch]
}

// FailWrites makes every subsequent output write return err (nil clears it).
func (s *Sim) FailWrites(err error) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	s.mem.writeErr = err
}

// FailConfigure makes every subsequent channel configuration return err.
func (s *Sim) FailConfigure(err error) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	s.mem.configErr = err
}

type memOutput struct {
	mu        sync.Mutex
	duty      map[int]uint32
	live      map[int]bool
	history   map[int][]uint32
	writeErr  error
	configErr error
}

func (m *memOutput) configure(_ TimerConfig, c ChannelConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.configErr != nil {
		return m.configErr
	}
	m.live[c.Channel] = true
	return nil
}

func (m *memOutput) write(ch int, duty uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.history == nil {
		m.history = make(map[int][]uint32)
	}
	m.duty[ch] = duty
	m.history[ch] = append(m.history[ch], duty)
	return nil
}

func (m *memOutput) pause(ch int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[ch] = false
	return nil
}

func (m *memOutput) release(ch int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, ch)
	delete(m.duty, ch)
	return nil
}
