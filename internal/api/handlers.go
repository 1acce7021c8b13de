package api

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ShuqiCH3N/Elytro/internal/chain"
	"github.com/ShuqiCH3N/Elytro/internal/history"
	"github.com/ShuqiCH3N/Elytro/internal/session"
	"github.com/ShuqiCH3N/Elytro/internal/userop"
	"github.com/ShuqiCH3N/Elytro/internal/wallet"
)

func (s *Server) createNewOwner(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	owner, err := s.ctrl.CreateNewOwner(c.Request.Context(), req.Password)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	s.respond(c, gin.H{"address": owner.Address.Hex()}, nil)
}

func (s *Server) getLockStatus(c *gin.Context) {
	locked, err := s.ctrl.GetLockStatus(c.Request.Context())
	s.respond(c, gin.H{"locked": locked}, err)
}

func (s *Server) lock(c *gin.Context) {
	s.respond(c, nil, s.ctrl.Lock(c.Request.Context()))
}

func (s *Server) unlock(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.Unlock(c.Request.Context(), req.Password))
}

func (s *Server) getCurrentApproval(c *gin.Context) {
	ap, err := s.ctrl.GetCurrentApproval(c.Request.Context())
	s.respond(c, ap, err)
}

func (s *Server) resolveApproval(c *gin.Context) {
	var data map[string]any
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&data); err != nil {
			badRequest(c, err)
			return
		}
	}
	s.respond(c, nil, s.ctrl.ResolveApproval(c.Request.Context(), c.Param("id"), data))
}

func (s *Server) rejectApproval(c *gin.Context) {
	s.respond(c, nil, s.ctrl.RejectApproval(c.Request.Context(), c.Param("id")))
}

func (s *Server) connectWallet(c *gin.Context) {
	var req struct {
		Origin  string `json:"origin"`
		Name    string `json:"name"`
		Icon    string `json:"icon"`
		ChainID uint64 `json:"chainId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dApp := session.DApp{Origin: req.Origin, Name: req.Name, Icon: req.Icon}
	s.respond(c, nil, s.ctrl.ConnectWallet(c.Request.Context(), dApp, req.ChainID))
}

func (s *Server) disconnectWallet(c *gin.Context) {
	var req struct {
		Origin string `json:"origin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.DisconnectWallet(c.Request.Context(), req.Origin))
}

func (s *Server) getConnectedDApps(c *gin.Context) {
	conns, err := s.ctrl.GetConnectedDApps(c.Request.Context())
	s.respond(c, conns, err)
}

// dappEvents streams wallet events to a connected origin as server-sent
// events. The stream ends when the client goes away or the origin is
// disconnected.
func (s *Server) dappEvents(c *gin.Context) {
	origin := c.Query("origin")
	events, unsubscribe, err := s.ctrl.SubscribeEvents(c.Request.Context(), origin)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(msg.Event, msg.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) signUserOperation(c *gin.Context) {
	var w userop.Wire
	if err := c.ShouldBindJSON(&w); err != nil {
		badRequest(c, err)
		return
	}
	signed, err := s.ctrl.SignUserOperation(c.Request.Context(), &w)
	s.respond(c, signed, err)
}

func (s *Server) sendUserOperation(c *gin.Context) {
	var w userop.Wire
	if err := c.ShouldBindJSON(&w); err != nil {
		badRequest(c, err)
		return
	}
	opHash, err := s.ctrl.SendUserOperation(c.Request.Context(), &w)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	s.respond(c, gin.H{"opHash": opHash}, nil)
}

func (s *Server) createDeployUserOp(c *gin.Context) {
	w, err := s.ctrl.CreateDeployUserOp(c.Request.Context())
	s.respond(c, w, err)
}

func (s *Server) createTxUserOp(c *gin.Context) {
	var req struct {
		Txs []wallet.CallParam `json:"txs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := s.ctrl.CreateTxUserOp(c.Request.Context(), req.Txs)
	s.respond(c, w, err)
}

func (s *Server) decodeUserOp(c *gin.Context) {
	var w userop.Wire
	if err := c.ShouldBindJSON(&w); err != nil {
		badRequest(c, err)
		return
	}
	calls, err := s.ctrl.DecodeUserOp(c.Request.Context(), &w)
	s.respond(c, calls, err)
}

func (s *Server) estimateGas(c *gin.Context) {
	var w userop.Wire
	if err := c.ShouldBindJSON(&w); err != nil {
		badRequest(c, err)
		return
	}
	estimated, err := s.ctrl.EstimateGas(c.Request.Context(), &w)
	s.respond(c, estimated, err)
}

func (s *Server) packUserOp(c *gin.Context) {
	var req struct {
		UserOp *userop.Wire `json:"userOp"`
		Amount string       `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserOp == nil {
		badRequest(c, errMissingUserOp(err))
		return
	}
	res, err := s.ctrl.PackUserOp(c.Request.Context(), req.UserOp, req.Amount)
	s.respond(c, res, err)
}

func (s *Server) signMessage(c *gin.Context) {
	var req struct {
		Message any `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sig, err := s.ctrl.SignMessage(c.Request.Context(), req.Message)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	s.respond(c, gin.H{"signature": sig}, nil)
}

func (s *Server) signTypedData(c *gin.Context) {
	var req struct {
		TypedData any `json:"typedData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sig, err := s.ctrl.SignTypedData(c.Request.Context(), req.TypedData)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	s.respond(c, gin.H{"signature": sig}, nil)
}

func (s *Server) getLatestHistories(c *gin.Context) {
	items, err := s.ctrl.GetLatestHistories(c.Request.Context())
	s.respond(c, items, err)
}

func (s *Server) addNewHistory(c *gin.Context) {
	var rec history.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.AddNewHistory(c.Request.Context(), rec))
}

func (s *Server) getChains(c *gin.Context) {
	chains, err := s.ctrl.GetChains(c.Request.Context())
	s.respond(c, chains, err)
}

func (s *Server) getCurrentChain(c *gin.Context) {
	cfg, err := s.ctrl.GetCurrentChain(c.Request.Context())
	s.respond(c, cfg, err)
}

func (s *Server) addChain(c *gin.Context) {
	var cfg chain.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.AddChain(c.Request.Context(), &cfg))
}

func (s *Server) updateChainConfig(c *gin.Context) {
	id, err := parseChainID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var up chain.Update
	if err := c.ShouldBindJSON(&up); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.UpdateChainConfig(c.Request.Context(), id, up))
}

func (s *Server) deleteChain(c *gin.Context) {
	id, err := parseChainID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.DeleteChain(c.Request.Context(), id))
}

func (s *Server) getAccounts(c *gin.Context) {
	accounts, err := s.ctrl.GetAccounts(c.Request.Context())
	s.respond(c, accounts, err)
}

func (s *Server) getCurrentAccount(c *gin.Context) {
	acc, err := s.ctrl.GetCurrentAccount(c.Request.Context())
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	s.respond(c, acc, nil)
}

func (s *Server) createAccount(c *gin.Context) {
	var req struct {
		ChainID uint64 `json:"chainId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.CreateAccount(c.Request.Context(), req.ChainID))
}

func (s *Server) switchAccountByChain(c *gin.Context) {
	var req struct {
		ChainID uint64 `json:"chainId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.respond(c, nil, s.ctrl.SwitchAccountByChain(c.Request.Context(), req.ChainID))
}

func (s *Server) removeAccount(c *gin.Context) {
	s.respond(c, nil, s.ctrl.RemoveAccount(c.Request.Context(), c.Param("address")))
}

func (s *Server) getENSInfoByName(c *gin.Context) {
	info, err := s.ctrl.GetENSInfoByName(c.Request.Context(), c.Param("name"))
	s.respond(c, info, err)
}

func parseChainID(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

var errNoUserOp = errors.New("userOp is required")

func errMissingUserOp(err error) error {
	if err != nil {
		return err
	}
	return errNoUserOp
}
