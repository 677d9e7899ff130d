package mbclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fieldbus-go/modbus"
)

// serverSide wraps the far end of a net.Pipe with the same framing the
// client uses, so tests can read requests and hand-craft responses without
// standing up a real server.
type serverSide struct {
	conn *modbus.Connection
}

func newTestPair(t *testing.T) (*Client, *serverSide) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	c, err := NewClient(clientConn)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c, &serverSide{conn: modbus.NewConnection(serverConn)}
}

func TestReadHoldingRegistersRoundTrip(t *testing.T) {
	c, srv := newTestPair(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := srv.conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		resp := &modbus.RegistersResponse{Values: []uint16{11, 22, 33}}
		body, err := resp.Encode()
		if err != nil {
			t.Errorf("server encode: %v", err)
			return
		}
		if err := srv.conn.WriteMessage(&modbus.Message{
			TransactionID: req.TransactionID,
			UnitID:        req.UnitID,
			FunctionCode:  modbus.FuncReadHoldingRegisters,
			Body:          body,
		}); err != nil {
			t.Errorf("server write: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	values, err := c.ReadHoldingRegisters(ctx, 0, 3)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters: %v", err)
	}
	if len(values) != 3 || values[0] != 11 || values[1] != 22 || values[2] != 33 {
		t.Errorf("unexpected values: %v", values)
	}
	<-done
}

func TestArgumentsOutOfRangeNoWrite(t *testing.T) {
	c, srv := newTestPair(t)

	readErrCh := make(chan error, 1)
	go func() {
		_, err := srv.conn.ReadMessage()
		readErrCh <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := c.ReadHoldingRegisters(ctx, 0, 0); err == nil {
		t.Fatal("expected an error for a zero-length read")
	} else if argErr := (*ArgumentsOutOfRangeError)(nil); !errors.As(err, &argErr) {
		t.Errorf("expected *ArgumentsOutOfRangeError, got %T: %v", err, err)
	}

	if _, err := c.ReadHoldingRegisters(ctx, 0, modbus.ReadHoldingRegistersMaxLength+1); err == nil {
		t.Fatal("expected an error for an over-length read")
	}

	if _, err := c.ReadHoldingRegisters(ctx, 0xfffe, 3); err == nil {
		t.Fatal("expected an error for a read that overflows the address space")
	}

	// Nothing above should have put a byte on the wire: closing the
	// client's connection now must unblock the server's read with EOF
	// rather than a frame it was never sent.
	_ = c.Close()
	select {
	case err := <-readErrCh:
		if err == nil {
			t.Error("expected the server read to fail, got a frame instead")
		}
	case <-time.After(time.Second):
		t.Fatal("server read never unblocked")
	}
}

func TestPipeliningOutOfOrder(t *testing.T) {
	c, srv := newTestPair(t)

	reqs := make(chan *modbus.Message, 2)
	go func() {
		for i := 0; i < 2; i++ {
			req, err := srv.conn.ReadMessage()
			if err != nil {
				t.Errorf("server read: %v", err)
				return
			}
			reqs <- req
		}

		first := <-reqs
		second := <-reqs

		// Answer the second request received first, out of order, to
		// exercise transaction-id based correlation rather than reply
		// ordering. Each reply carries 100 + 100*address, so the caller
		// reading address 0 expects 100 and the one reading address 1
		// expects 200, whichever request arrived first.
		for _, pair := range []struct {
			req *modbus.Message
		}{
			{second},
			{first},
		} {
			rr, err := modbus.DecodeReadRequest(pair.req.Body)
			if err != nil {
				t.Errorf("decode request: %v", err)
				return
			}
			resp := &modbus.RegistersResponse{Values: []uint16{100 + 100*rr.Address}}
			body, err := resp.Encode()
			if err != nil {
				t.Errorf("encode: %v", err)
				return
			}
			if err := srv.conn.WriteMessage(&modbus.Message{
				TransactionID: pair.req.TransactionID,
				UnitID:        pair.req.UnitID,
				FunctionCode:  modbus.FuncReadHoldingRegisters,
				Body:          body,
			}); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type result struct {
		values []uint16
		err    error
	}
	firstCh := make(chan result, 1)
	secondCh := make(chan result, 1)

	go func() {
		v, err := c.ReadHoldingRegisters(ctx, 0, 1)
		firstCh <- result{v, err}
	}()
	go func() {
		v, err := c.ReadHoldingRegisters(ctx, 1, 1)
		secondCh <- result{v, err}
	}()

	first := <-firstCh
	second := <-secondCh

	if first.err != nil {
		t.Fatalf("first request: %v", first.err)
	}
	if second.err != nil {
		t.Fatalf("second request: %v", second.err)
	}
	if first.values[0] != 100 {
		t.Errorf("expected first caller to get 100, got %v", first.values[0])
	}
	if second.values[0] != 200 {
		t.Errorf("expected second caller to get 200, got %v", second.values[0])
	}
}

func TestReaderFailureFansOutToAllPending(t *testing.T) {
	c, srv := newTestPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Consume the requests so the client's writes complete and both calls
	// are left pending on the reader.
	go func() {
		for {
			if _, err := srv.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	errCh1 := make(chan error, 1)
	errCh2 := make(chan error, 1)
	go func() {
		_, err := c.ReadHoldingRegisters(ctx, 0, 1)
		errCh1 <- err
	}()
	go func() {
		_, err := c.ReadHoldingRegisters(ctx, 1, 1)
		errCh2 <- err
	}()

	// Let both requests land, then sever the connection without ever
	// answering, which is what every pending caller must be woken by.
	time.Sleep(50 * time.Millisecond)
	_ = srv.conn.Close()

	var ioErr1, ioErr2 *IOError
	if err := <-errCh1; !errors.As(err, &ioErr1) {
		t.Errorf("expected *IOError for first caller, got %T: %v", err, err)
	}
	if err := <-errCh2; !errors.As(err, &ioErr2) {
		t.Errorf("expected *IOError for second caller, got %T: %v", err, err)
	}
}

func TestReaderDecodeTerminalFailureIsInvalidResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	c, err := NewClient(clientConn)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	go func() {
		// Consume the request first so the client's write completes and
		// the call is pending when the bad frame arrives.
		_, _ = modbus.NewConnection(serverConn).ReadMessage()

		// A length field this large can never be reconciled with
		// MsgMaxLength: this is a decode-terminal framing fault, not a
		// transport failure, so the caller must see *InvalidResponseError
		// rather than *IOError.
		_, _ = serverConn.Write([]byte{0x00, 0x00, 0x00, 0x00, 0xff, 0xff})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = c.ReadHoldingRegisters(ctx, 0, 1)

	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidResponseError, got %T: %v", err, err)
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		t.Errorf("decode-terminal framing fault must not also be an *IOError, got %v", err)
	}
}

func TestExceptionDecoding(t *testing.T) {
	c, srv := newTestPair(t)

	go func() {
		req, err := srv.conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		if err := srv.conn.WriteMessage(&modbus.Message{
			TransactionID: req.TransactionID,
			UnitID:        req.UnitID,
			FunctionCode:  req.FunctionCode.AsException(),
			Body:          []byte{byte(modbus.ExIllegalDataAddress)},
		}); err != nil {
			t.Errorf("server write: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := c.ReadHoldingRegisters(ctx, 0, 1)
	if err == nil {
		t.Fatal("expected an exception error")
	}

	var modbusErr modbus.ModbusException
	if !errors.As(err, &modbusErr) {
		t.Fatalf("expected modbus.ModbusException, got %T: %v", err, err)
	}
	if modbusErr.Code() != modbus.ExIllegalDataAddress {
		t.Errorf("expected illegal data address, got %v", modbusErr.Code())
	}
}

func TestWriteSingleCoilEchoMismatch(t *testing.T) {
	c, srv := newTestPair(t)

	go func() {
		req, err := srv.conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		// Echo back the wrong address, which must surface as an
		// InvalidResponseError rather than a silent success.
		wrong := &modbus.WriteSingleCoil{Address: 99, Value: true}
		if err := srv.conn.WriteMessage(&modbus.Message{
			TransactionID: req.TransactionID,
			UnitID:        req.UnitID,
			FunctionCode:  modbus.FuncWriteSingleCoil,
			Body:          wrong.Encode(),
		}); err != nil {
			t.Errorf("server write: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.WriteSingleCoil(ctx, 5, true)
	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidResponseError, got %T: %v", err, err)
	}
}
