package protocol

// Observer 生命周期观察者
//
// 每次操作完成后同步回调，err 为该次操作的结果（nil 表示成功）。
// 实现必须快速返回，且可被并发调用。
type Observer interface {
	// OnStart Start 完成
	OnStart(err error)

	// OnStop Stop 完成
	OnStop(err error)

	// OnAccept Accept 完成
	OnAccept(err error)

	// OnConnect Connect 完成
	OnConnect(err error)
}

type nopObserver struct{}

func (nopObserver) OnStart(error)   {}
func (nopObserver) OnStop(error)    {}
func (nopObserver) OnAccept(error)  {}
func (nopObserver) OnConnect(error) {}

type options struct {
	observer Observer
}

func defaultOptions() options {
	return options{observer: nopObserver{}}
}

// Option 协议选项
type Option func(*options)

// WithObserver 设置生命周期观察者
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}
