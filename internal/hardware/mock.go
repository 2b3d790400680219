package hardware

import (
	"context"
	"fmt"
	"sync"
)

// OpKind identifies the kind of a recorded bus operation.
type OpKind uint8

const (
	OpWrite OpKind = iota
	OpWriteBulk
	OpUpdateBits
)

func (k OpKind) String() string {
	switch k {
	case OpWrite:
		return "write"
	case OpWriteBulk:
		return "write_bulk"
	case OpUpdateBits:
		return "update_bits"
	default:
		return "unknown"
	}
}

// Op is one bus operation recorded by Mock.
type Op struct {
	Kind OpKind
	Addr Addr
	Data []byte // value bytes; a single byte for write and update_bits
	Mask byte   // update_bits only
}

func (o Op) String() string {
	if o.Kind == OpUpdateBits {
		return fmt.Sprintf("%s %s mask=0x%02x val=0x%02x", o.Kind, o.Addr, o.Mask, o.Data[0])
	}
	return fmt.Sprintf("%s %s % x", o.Kind, o.Addr, o.Data)
}

// Mock is a thread-safe in-memory register file for testing and development.
// It records every mutating operation in order.
type Mock struct {
	mu        sync.Mutex
	regs      map[Addr]byte
	ops       []Op
	failWrite bool
	failRead  bool
	failAfter int // fail writes once this many more have succeeded; -1 = never
}

// NewMock creates a new mock bus with all registers reading zero.
func NewMock() *Mock {
	return &Mock{
		regs:      make(map[Addr]byte),
		failAfter: -1,
	}
}

// SetFailWrite configures the mock to fail all write operations.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// SetFailRead configures the mock to fail all read operations.
func (m *Mock) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// FailAfter lets n more writes succeed, then fails every following write.
// A negative n disables the countdown.
func (m *Mock) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
}

func (m *Mock) Write(ctx context.Context, addr Addr, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite("write", addr); err != nil {
		return err
	}
	m.regs[addr] = val
	m.ops = append(m.ops, Op{Kind: OpWrite, Addr: addr, Data: []byte{val}})
	return nil
}

func (m *Mock) WriteBulk(ctx context.Context, addr Addr, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite("write_bulk", addr); err != nil {
		return err
	}
	for i, b := range data {
		m.regs[addr+Addr(i)] = b
	}
	m.ops = append(m.ops, Op{Kind: OpWriteBulk, Addr: addr, Data: append([]byte(nil), data...)})
	return nil
}

func (m *Mock) UpdateBits(ctx context.Context, addr Addr, mask, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return &BusError{Op: "update_bits", Addr: addr, Err: errMockRead}
	}
	if err := m.checkWrite("update_bits", addr); err != nil {
		return err
	}
	m.regs[addr] = (m.regs[addr] &^ mask) | (val & mask)
	m.ops = append(m.ops, Op{Kind: OpUpdateBits, Addr: addr, Data: []byte{val}, Mask: mask})
	return nil
}

func (m *Mock) Read(ctx context.Context, addr Addr) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return 0, &BusError{Op: "read", Addr: addr, Err: errMockRead}
	}
	return m.regs[addr], nil
}

// checkWrite must be called with m.mu held.
func (m *Mock) checkWrite(op string, addr Addr) error {
	if m.failWrite {
		return &BusError{Op: op, Addr: addr, Err: errMockWrite}
	}
	if m.failAfter == 0 {
		return &BusError{Op: op, Addr: addr, Err: errMockWrite}
	}
	if m.failAfter > 0 {
		m.failAfter--
	}
	return nil
}

// GetReg returns a register value for testing purposes.
func (m *Mock) GetReg(addr Addr) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// SetReg presets a register without recording an operation.
func (m *Mock) SetReg(addr Addr, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = val
}

// Ops returns a copy of the recorded operations.
func (m *Mock) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// ResetOps clears the operation log, keeping register contents.
func (m *Mock) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

// MockError is returned by injected mock failures.
type MockError struct {
	msg string
}

func (e MockError) Error() string { return e.msg }

var (
	errMockWrite = MockError{msg: "mock: write failure configured"}
	errMockRead  = MockError{msg: "mock: read failure configured"}
)

var _ Bus = (*Mock)(nil)
