package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/whispercard/internal/actions"
	"github.com/MimeLyc/whispercard/internal/media"
	"github.com/MimeLyc/whispercard/internal/subtitle"
)

// PayloadStore yields previously persisted subtitle payloads so a reopened
// document picks up its edits.
type PayloadStore interface {
	GetSubtitles(ctx context.Context, documentName string) ([]subtitle.Line, bool, error)
}

// Server exposes the document/audio lifecycle and the action vocabulary to a
// host over HTTP. It is the control surface of the standalone binary; the
// embedding player talks to the same components directly.
type Server struct {
	store      *subtitle.Store
	source     *media.Source
	dispatcher *actions.Dispatcher
	payloads   PayloadStore
	progress   *progressBroker

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithPayloadStore(payloads PayloadStore) Option {
	return func(s *Server) {
		s.payloads = payloads
	}
}

func NewServer(store *subtitle.Store, source *media.Source, dispatcher *actions.Dispatcher, opts ...Option) *Server {
	s := &Server{
		store:      store,
		source:     source,
		dispatcher: dispatcher,
		progress:   newProgressBroker(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// PublishProgress is wired as the exporter's progress callback.
func (s *Server) PublishProgress(percent int) {
	s.progress.publish(percent)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/media", s.handleMedia)
	s.mux.HandleFunc("/api/subtitles", s.handleSubtitles)
	s.mux.HandleFunc("/api/actions", s.handleAction)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/export/stream", s.handleExportStream)
}
