package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

func newServer(port int, svc *Service) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewHandler(svc).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// RunServer runs the HTTP server. This is a blocking call.
func RunServer(port int, svc *Service) {
	srv := newServer(port, svc)
	log.Printf("archivist listening on %s\n", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}

// RunServerInterruptible starts the server in the background. Closing (or sending on) stop shuts it
// down gracefully; done yields the serve error, nil after a clean shutdown.
func RunServerInterruptible(port int, svc *Service) (stop chan<- struct{}, done <-chan error) {
	srv := newServer(port, svc)

	stopCh := make(chan struct{})
	doneCh := make(chan error, 1)

	go func() {
		log.Printf("archivist listening on %s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	go func() {
		<-stopCh
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
	}()
	return stopCh, doneCh
}
