package hello

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"sync"
	"time"

	"github.com/multiformats/go-varint"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// MaxMessageSize 单条 hello 消息的最大字节数
const MaxMessageSize = 64 * 1024

const (
	fieldPublicKey      = "public_key"
	fieldAdvertiseAddrs = "advertise_addrs"
)

var (
	// ErrMessageTooLarge 消息超过 MaxMessageSize
	ErrMessageTooLarge = errors.New("hello: message too large")

	// ErrInvalidMessage 消息格式错误
	ErrInvalidMessage = errors.New("hello: invalid message")
)

// Message hello 消息
type Message struct {
	PublicKey      types.PublicKey
	AdvertiseAddrs []netip.AddrPort
}

// deadliner 支持截止时间的连接
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Exchange 发送 local 并接收对端消息
//
// rw 支持 SetDeadline 时，ctx 结束会中断进行中的读写，
// 任一方向失败也会立即中断另一方向。
func Exchange(ctx context.Context, rw io.ReadWriter, local Message) (Message, error) {
	abort := func() {}
	if d, ok := rw.(deadliner); ok {
		var (
			mu       sync.Mutex
			finished bool
		)
		abort = func() {
			mu.Lock()
			defer mu.Unlock()
			if !finished {
				_ = d.SetDeadline(time.Now())
			}
		}
		stop := context.AfterFunc(ctx, abort)
		defer func() {
			stop()
			mu.Lock()
			finished = true
			_ = d.SetDeadline(time.Time{})
			mu.Unlock()
		}()
	}

	var (
		remote Message
		g      errgroup.Group
	)
	g.Go(func() error {
		if err := WriteMessage(rw, local); err != nil {
			abort()
			return err
		}
		return nil
	})
	g.Go(func() error {
		m, err := ReadMessage(rw)
		if err != nil {
			abort()
			return err
		}
		remote = m
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, fmt.Errorf("hello exchange: %w", ctxErr)
		}
		return Message{}, fmt.Errorf("hello exchange: %w", err)
	}
	return remote, nil
}

// WriteMessage 写入一条带长度前缀的消息
func WriteMessage(w io.Writer, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	frame := append(varint.ToUvarint(uint64(len(data))), data...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}
	return nil
}

// ReadMessage 读取一条带长度前缀的消息
func ReadMessage(r io.Reader) (Message, error) {
	size, err := varint.ReadUvarint(byteReader{r})
	if err != nil {
		return Message{}, fmt.Errorf("read hello length: %w", err)
	}
	if size > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, fmt.Errorf("read hello body: %w", err)
	}
	return Decode(buf)
}

// Encode 编码消息
func Encode(m Message) ([]byte, error) {
	addrs := make([]any, 0, len(m.AdvertiseAddrs))
	for _, a := range m.AdvertiseAddrs {
		addrs = append(addrs, a.String())
	}

	st, err := structpb.NewStruct(map[string]any{
		fieldPublicKey:      m.PublicKey.String(),
		fieldAdvertiseAddrs: addrs,
	})
	if err != nil {
		return nil, fmt.Errorf("build hello: %w", err)
	}

	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal hello: %w", err)
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}
	return data, nil
}

// Decode 解码消息
func Decode(data []byte) (Message, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	key, ok := st.GetFields()[fieldPublicKey]
	if !ok {
		return Message{}, fmt.Errorf("%w: missing %s", ErrInvalidMessage, fieldPublicKey)
	}

	m := Message{PublicKey: types.PublicKey(key.GetStringValue())}
	for _, v := range st.GetFields()[fieldAdvertiseAddrs].GetListValue().GetValues() {
		addr, err := netip.ParseAddrPort(v.GetStringValue())
		if err != nil {
			return Message{}, fmt.Errorf("%w: advertise addr %q", ErrInvalidMessage, v.GetStringValue())
		}
		m.AdvertiseAddrs = append(m.AdvertiseAddrs, addr)
	}
	return m, nil
}

// byteReader 逐字节读取，避免越过长度前缀
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
