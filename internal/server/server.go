// Package server exposes the decode pipeline over JSON-RPC 2.0 for the
// presentation layer, plus a health endpoint for deploys.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/dotandev/sorograph/internal/graph"
	"github.com/dotandev/sorograph/internal/schema"
)

// Decoder is the pipeline surface the RPC service needs.
type Decoder interface {
	Decode(ctx context.Context, hash string) (*schema.TransactionDetails, error)
	Graph(ctx context.Context, hash string) (*schema.TransactionDetails, graph.Graph, error)
}

// TraceService is registered under the "trace" namespace, so clients call
// trace.Decode and trace.Graph.
type TraceService struct {
	dec Decoder
}

type DecodeArgs struct {
	Hash string `json:"hash"`
}

type DecodeReply struct {
	Transaction *schema.TransactionDetails `json:"transaction"`
}

func (s *TraceService) Decode(r *http.Request, args *DecodeArgs, reply *DecodeReply) error {
	if args.Hash == "" {
		return errors.New("hash is required")
	}
	details, err := s.dec.Decode(r.Context(), args.Hash)
	if err != nil {
		log.WithFields(log.Fields{"package": "server", "hash": args.Hash}).
			WithError(err).Warn("decode failed")
		return err
	}
	reply.Transaction = details
	return nil
}

type GraphReply struct {
	Transaction *schema.TransactionDetails `json:"transaction"`
	Graph       graph.Graph                `json:"graph"`
}

func (s *TraceService) Graph(r *http.Request, args *DecodeArgs, reply *GraphReply) error {
	if args.Hash == "" {
		return errors.New("hash is required")
	}
	details, g, err := s.dec.Graph(r.Context(), args.Hash)
	if err != nil {
		log.WithFields(log.Fields{"package": "server", "hash": args.Hash}).
			WithError(err).Warn("graph build failed")
		return err
	}
	reply.Transaction = details
	reply.Graph = g
	return nil
}

// Handler assembles the routed, CORS-wrapped HTTP handler.
func Handler(dec Decoder) (http.Handler, error) {
	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(&TraceService{dec: dec}, "trace"); err != nil {
		return nil, errors.Wrap(err, "registering trace service")
	}

	r := mux.NewRouter()
	r.Handle("/rpc", rpcServer).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r), nil
}

// ListenAndServe blocks serving the handler on addr until the context is
// canceled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, dec Decoder) error {
	h, err := Handler(dec)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: h}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"package": "server", "addr": addr}).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serving rpc")
	}
}
