package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// App 运行中的节点应用
type App struct {
	bootstrap *Bootstrap
	runtime   *Runtime
	stopOnce  sync.Once
	stopErr   error
	stopped   chan struct{}
}

// RunApp 构建并启动节点应用
//
// 示例:
//
//	app, err := app.RunApp(ctx, app.NewBootstrap(app.WithConfig(cfg)))
//	if err != nil {
//	    return err
//	}
//	app.Wait()
func RunApp(ctx context.Context, bootstrap *Bootstrap) (*App, error) {
	rt, err := bootstrap.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}
	return &App{
		bootstrap: bootstrap,
		runtime:   rt,
		stopped:   make(chan struct{}),
	}, nil
}

// Runtime 返回节点运行时
func (a *App) Runtime() *Runtime {
	return a.runtime
}

// Wait 等待退出信号或 Stop，收到信号时停止应用
func (a *App) Wait() error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		logger.Info("收到信号，正在退出", "signal", sig.String())
	case <-a.stopped:
		return a.stopErr
	}

	return a.Stop()
}

// Stop 停止应用，重复调用返回第一次的结果
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		if err := a.bootstrap.Stop(context.Background()); err != nil {
			a.stopErr = fmt.Errorf("停止应用失败: %w", err)
		}
		close(a.stopped)
	})
	return a.stopErr
}
