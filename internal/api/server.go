// Package api exposes the wallet controller over HTTP. Every controller
// operation maps to one endpoint; errors cross the boundary as JSON-RPC
// style {code, message} objects.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ShuqiCH3N/Elytro/internal/wallet"
)

// Server is the HTTP boundary in front of a wallet controller.
type Server struct {
	ctrl   *wallet.Controller
	router *gin.Engine
	http   *http.Server
	log    *logrus.Entry
}

func NewServer(ctrl *wallet.Controller) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		ctrl:   ctrl,
		router: gin.New(),
		log:    logrus.WithField("module", "api"),
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler exposes the routing tree, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.log.WithField("addr", addr).Info("api listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	r := s.router

	r.POST("/wallet/owner", s.createNewOwner)
	r.GET("/wallet/lock-status", s.getLockStatus)
	r.POST("/wallet/lock", s.lock)
	r.POST("/wallet/unlock", s.unlock)

	r.GET("/approval", s.getCurrentApproval)
	r.POST("/approval/:id/resolve", s.resolveApproval)
	r.POST("/approval/:id/reject", s.rejectApproval)

	r.POST("/dapp/connect", s.connectWallet)
	r.POST("/dapp/disconnect", s.disconnectWallet)
	r.GET("/dapp/connections", s.getConnectedDApps)
	r.GET("/dapp/events", s.dappEvents)

	r.POST("/userop/sign", s.signUserOperation)
	r.POST("/userop/send", s.sendUserOperation)
	r.POST("/userop/deploy", s.createDeployUserOp)
	r.POST("/userop/from-txs", s.createTxUserOp)
	r.POST("/userop/decode", s.decodeUserOp)
	r.POST("/userop/estimate", s.estimateGas)
	r.POST("/userop/pack", s.packUserOp)

	r.POST("/message/sign", s.signMessage)
	r.POST("/typed-data/sign", s.signTypedData)

	r.GET("/history", s.getLatestHistories)
	r.POST("/history", s.addNewHistory)

	r.GET("/chains", s.getChains)
	r.GET("/chains/current", s.getCurrentChain)
	r.POST("/chains", s.addChain)
	r.PATCH("/chains/:id", s.updateChainConfig)
	r.DELETE("/chains/:id", s.deleteChain)

	r.GET("/accounts", s.getAccounts)
	r.GET("/accounts/current", s.getCurrentAccount)
	r.POST("/accounts", s.createAccount)
	r.POST("/accounts/switch", s.switchAccountByChain)
	r.DELETE("/accounts/:address", s.removeAccount)

	r.GET("/ens/:name", s.getENSInfoByName)
}

// respond writes result, or maps err to its boundary form. Typed RPC
// errors keep their code; everything else becomes an internal error.
func (s *Server) respond(c *gin.Context, result any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"result": result})
		return
	}

	var rpcErr *wallet.RPCError
	if !errors.As(err, &rpcErr) {
		s.log.WithError(err).Warn("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    wallet.CodeInternal,
			"message": err.Error(),
		}})
		return
	}

	status := http.StatusInternalServerError
	switch rpcErr.Code {
	case wallet.CodeInvalidParams:
		status = http.StatusBadRequest
	case wallet.CodeUserRejected, wallet.CodeUnauthorized:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": gin.H{
		"code":    rpcErr.Code,
		"message": rpcErr.Message,
	}})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
		"code":    wallet.CodeInvalidParams,
		"message": err.Error(),
	}})
}
