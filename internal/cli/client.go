package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ShuqiCH3N/Elytro/internal/account"
	"github.com/ShuqiCH3N/Elytro/internal/approval"
	"github.com/ShuqiCH3N/Elytro/internal/chain"
)

// daemonClient talks to a running wallet daemon over its local HTTP API.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(listenAddr string) *daemonClient {
	return &daemonClient{
		base: "http://" + listenAddr,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

// call performs one request and decodes the result envelope into out (when
// out is non-nil).
func (c *daemonClient) call(method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Result json.RawMessage `json:"result"`
		Error  *apiError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected daemon response: %w", err)
	}
	if env.Error != nil {
		return env.Error
	}
	if out != nil && len(env.Result) > 0 {
		return json.Unmarshal(env.Result, out)
	}
	return nil
}

func (c *daemonClient) lockStatus() (bool, error) {
	var res struct {
		Locked bool `json:"locked"`
	}
	err := c.call(http.MethodGet, "/wallet/lock-status", nil, &res)
	return res.Locked, err
}

func (c *daemonClient) currentApproval() (*approval.Approval, error) {
	var ap *approval.Approval
	err := c.call(http.MethodGet, "/approval", nil, &ap)
	return ap, err
}

func (c *daemonClient) resolveApproval(id string, data map[string]any) error {
	return c.call(http.MethodPost, "/approval/"+id+"/resolve", data, nil)
}

func (c *daemonClient) rejectApproval(id string) error {
	return c.call(http.MethodPost, "/approval/"+id+"/reject", nil, nil)
}

func (c *daemonClient) chains() ([]*chain.Config, error) {
	var out []*chain.Config
	err := c.call(http.MethodGet, "/chains", nil, &out)
	return out, err
}

func (c *daemonClient) currentChain() (*chain.Config, error) {
	var out *chain.Config
	err := c.call(http.MethodGet, "/chains/current", nil, &out)
	return out, err
}

func (c *daemonClient) switchAccountByChain(chainID uint64) error {
	return c.call(http.MethodPost, "/accounts/switch", map[string]any{"chainId": chainID}, nil)
}

func (c *daemonClient) currentAccount() (*account.Account, error) {
	var out *account.Account
	err := c.call(http.MethodGet, "/accounts/current", nil, &out)
	return out, err
}
