// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"orderdesk/internal/pkg/logger"
)

// Registrar 是服务注册中心，nacos.Client 实现了它
type Registrar interface {
	RegisterServiceInstance(serviceName, ip string, port int) error
	DeregisterServiceInstance(serviceName, ip string, port int) error
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName     string
	Port            int
	Handler         http.Handler
	ShutdownTimeout time.Duration

	// Runners 是随服务一起运行的后台任务，ctx 结束时应返回
	Runners []func(ctx context.Context) error
	// Cleanups 在 HTTP 服务关闭后按注册的逆序执行
	Cleanups []func(ctx context.Context) error
	// Registrar 为 nil 时不做服务注册
	Registrar Registrar
}

// StartService 封装了通用的启动和优雅关停逻辑，阻塞到收到退出信号或任一组件失败。
func StartService(ctx context.Context, info AppInfo) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if info.ShutdownTimeout <= 0 {
		info.ShutdownTimeout = 15 * time.Second
	}
	log := logger.L().With().Str("service", info.ServiceName).Logger()

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(info.Port))
	if err != nil {
		runCleanups(context.Background(), info.Cleanups)
		return errors.Wrapf(err, "could not listen on :%d", info.Port)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	server := &http.Server{Handler: info.Handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", port).Msg("✅ HTTP server listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	for _, run := range info.Runners {
		run := run
		g.Go(func() error { return run(gctx) })
	}

	var ip string
	if info.Registrar != nil {
		ip, err = GetOutboundIP()
		if err != nil {
			log.Warn().Err(err).Msg("failed to get outbound IP address, skipping registration")
		} else if err := info.Registrar.RegisterServiceInstance(info.ServiceName, ip, port); err != nil {
			log.Warn().Err(err).Msg("failed to register service, continuing unregistered")
			ip = ""
		}
	}

	// 关停流程：注销 -> 关闭 HTTP -> 逆序清理
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), info.ShutdownTimeout)
		defer cancel()

		if info.Registrar != nil && ip != "" {
			if err := info.Registrar.DeregisterServiceInstance(info.ServiceName, ip, port); err != nil {
				log.Error().Err(err).Msg("Error deregistering service")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		} else {
			log.Info().Msg("HTTP server shut down.")
		}

		runCleanups(shutdownCtx, info.Cleanups)
		return nil
	})

	err = g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("service stopped with error")
	} else {
		log.Info().Msg("🛑 Service gracefully shut down.")
	}
	return err
}

func runCleanups(ctx context.Context, cleanups []func(ctx context.Context) error) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](ctx); err != nil {
			logger.L().Error().Err(err).Msg("cleanup failed")
		}
	}
}

// GetOutboundIP 返回本机访问外网时使用的 IP，用于服务注册
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "detect outbound ip")
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
