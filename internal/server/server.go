// Package server exposes the faucet, user registry and RPC proxy over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"dexPortal/internal/faucet"
	"dexPortal/internal/model"
)

const shutdownTimeout = 10 * time.Second

// Faucet is the part of faucet.Service the handlers use.
type Faucet interface {
	Dispense(ctx context.Context, wallet, symbol string) (faucet.Report, error)
	RegisterUser(ctx context.Context, wallet string) (bool, model.User, error)
}

// Server wires the portal routes onto one listener.
type Server struct {
	faucet Faucet
	proxy  http.Handler
	logger *zap.Logger
	mux    *http.ServeMux
}

// New builds the route table. faucet and proxy may be nil; their routes then answer 500 and 404.
func New(f Faucet, proxy http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{faucet: f, proxy: proxy, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/send-erc20", s.handleSendERC20)
	s.mux.HandleFunc("POST /api/users", s.handleUsers)
	if proxy != nil {
		s.mux.Handle("/api/rpc-proxy", proxy)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logRequests(s.mux).ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSendERC20(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("walletAddress")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "Wallet address is required in query parameters (walletAddress)", "")
		return
	}
	if s.faucet == nil {
		writeError(w, http.StatusInternalServerError, "Server configuration error: faucet is not configured", "")
		return
	}

	report, err := s.faucet.Dispense(r.Context(), wallet, r.URL.Query().Get("token"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, faucet.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "Invalid wallet address provided", "")
	case errors.Is(err, faucet.ErrUnknownToken):
		writeError(w, http.StatusBadRequest, unwrapMessage(err), "")
	case errors.Is(err, faucet.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "Server configuration error: faucet is not configured", "")
	default:
		s.logger.Error("faucet request failed", zap.String("wallet", wallet), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}

type registerRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type registerResponse struct {
	Message string     `json:"message"`
	User    model.User `json:"user"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "Wallet address is required", "")
		return
	}
	if s.faucet == nil {
		writeError(w, http.StatusInternalServerError, "Server configuration error: user ledger is not configured", "")
		return
	}

	created, user, err := s.faucet.RegisterUser(r.Context(), req.WalletAddress)
	switch {
	case errors.Is(err, faucet.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "Validation Error", err.Error())
	case err != nil:
		s.logger.Error("register user failed", zap.String("wallet", req.WalletAddress), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	case created:
		s.logger.Info("user registered", zap.String("wallet", user.WalletAddress))
		writeJSON(w, http.StatusCreated, registerResponse{Message: "User added successfully", User: user})
	default:
		writeJSON(w, http.StatusOK, registerResponse{Message: "User already exists", User: user})
	}
}

// unwrapMessage drops the sentinel prefix from a wrapped error.
func unwrapMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{faucet.ErrUnknownToken, faucet.ErrInvalidAddress} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
