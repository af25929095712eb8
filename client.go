package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/vipnode/peerrpc/kvstore"
	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/peer/ws/gobwas"
	"github.com/vipnode/peerrpc/pubsub"
)

// session is a client connection to a peerrpc server.
type session struct {
	codec   peer.Codec
	manager *pubsub.Manager
	store   *kvstore.RemoteStore

	// errCh receives the result of the read loop.
	errCh chan error
}

func dial(ctx context.Context, url string) (*session, error) {
	logger.Infof("Connecting to server: %s", url)
	codec, err := gobwas.WebSocketDial(ctx, url)
	if err != nil {
		return nil, ErrExplain{err, "Failed to connect to the peerrpc server. Make sure it is running and the --url is correct."}
	}

	transport := peer.NewCodecTransport(codec)
	p := peer.New(transport)
	manager := pubsub.New(p)
	s := &session{
		codec:   codec,
		manager: manager,
		store:   kvstore.Remote(p, manager),
		errCh:   make(chan error, 1),
	}
	if err := p.Handle("client_hello", func(serverVersion string) string {
		logger.Infof("Connected to server running version %s", serverVersion)
		return Version
	}); err != nil {
		codec.Close()
		return nil, err
	}

	go func() {
		s.errCh <- transport.Serve()
	}()
	return s, nil
}

func (s *session) Close() error {
	s.manager.Destroy()
	return s.codec.Close()
}

func withSession(url string, fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	s, err := dial(ctx, url)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func runGet(options Options) error {
	return withSession(options.Get.URL, func(ctx context.Context, s *session) error {
		item, err := s.store.Get(ctx, options.Get.Args.Key)
		if err != nil {
			return err
		}
		fmt.Println(item.Value)
		return nil
	})
}

func runSet(options Options) error {
	return withSession(options.Set.URL, func(ctx context.Context, s *session) error {
		item, err := s.store.Set(ctx, options.Set.Args.Key, options.Set.Args.Value)
		if err != nil {
			return err
		}
		logger.Infof("Set %q to version %d", item.Key, item.Version)
		return nil
	})
}

func runWatch(options Options) error {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	s, err := dial(ctx, options.Watch.URL)
	cancel()
	if err != nil {
		return err
	}
	defer s.Close()

	return watch(s, options.Watch.Args.Prefix, os.Stdout, interruptCh())
}

// watch prints every change under prefix to w until stop fires or the
// connection ends.
func watch(s *session, prefix string, w io.Writer, stop <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	unsubscribe, err := startWatch(ctx, s, prefix, w)
	cancel()
	if err != nil {
		return err
	}
	logger.Infof("Watching for changes under %q", prefix)

	select {
	case <-stop:
		logger.Info("Shutting down...")
	case err := <-s.errCh:
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	return unsubscribe(ctx)
}

// startWatch subscribes to changes under prefix, printing each one to w. The
// subscription is active once it returns.
func startWatch(ctx context.Context, s *session, prefix string, w io.Writer) (pubsub.Unsubscribe, error) {
	return s.store.Watch(ctx, prefix, func(c kvstore.Change) {
		if c.Deleted {
			fmt.Fprintf(w, "%s deleted\n", c.Key)
			return
		}
		fmt.Fprintf(w, "%s = %s (version %d)\n", c.Key, c.Item.Value, c.Item.Version)
	})
}

// interruptCh is closed on the first ctrl+c.
func interruptCh() <-chan struct{} {
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		signal.Stop(sigCh)
		close(stop)
	}()
	return stop
}
