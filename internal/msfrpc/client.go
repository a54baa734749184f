// Package msfrpc is a client for the Metasploit RPC service (msfrpcd).
// Calls are msgpack-encoded arrays POSTed to /api/; the service answers
// with msgpack maps, using an in-band error map for failures.
package msfrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Options configures a Client.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
}

// Client talks to one msfrpcd endpoint. Authenticate with Login before
// calling anything else; the temporary token is threaded into every call.
type Client struct {
	opts  Options
	url   string
	token string
	http  *http.Client
}

// New builds a client for the endpoint described by opts. No connection is
// made until Login.
func New(opts Options) *Client {
	scheme := "http"
	transport := &http.Transport{}
	if opts.SSL {
		scheme = "https"
		// msfrpcd serves a self-signed certificate.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		opts: opts,
		url:  fmt.Sprintf("%s://%s:%d/api/", scheme, opts.Host, opts.Port),
		http: &http.Client{Transport: transport},
	}
}

// Endpoint returns the URL the client talks to.
func (c *Client) Endpoint() string { return c.url }

// Authenticated reports whether Login has succeeded.
func (c *Client) Authenticated() bool { return c.token != "" }

// call encodes req as msgpack, POSTs it and decodes the response into res.
// The response body is decoded twice: once to check for the in-band error
// map and once into the caller's type.
func (c *Client) call(ctx context.Context, method string, req, res interface{}) error {
	body, err := msgpack.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "binary/message-pack")

	httpRes, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer httpRes.Body.Close()

	data, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}

	var rpcErr errorRes
	if err := msgpack.Unmarshal(data, &rpcErr); err == nil && rpcErr.Error {
		return &RPCError{Method: method, Class: rpcErr.ErrorClass, Message: rpcErr.ErrorMessage}
	}
	if httpRes.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", method, httpRes.Status)
	}

	if res == nil {
		return nil
	}
	if err := msgpack.Unmarshal(data, res); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}
	return nil
}

// Login authenticates with auth.login and stores the temporary token.
func (c *Client) Login(ctx context.Context) error {
	var res loginRes
	err := c.call(ctx, "auth.login", loginReq{
		Method:   "auth.login",
		Username: c.opts.Username,
		Password: c.opts.Password,
	}, &res)
	if err != nil {
		return err
	}
	if res.Result != "success" || res.Token == "" {
		return fmt.Errorf("auth.login: unexpected result %q", res.Result)
	}
	c.token = res.Token
	return nil
}

// Logout invalidates the token. Safe to call when not logged in.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	err := c.call(ctx, "auth.logout", logoutReq{
		Method:  "auth.logout",
		Token:   c.token,
		Session: c.token,
	}, nil)
	c.token = ""
	return err
}

// CoreVersion returns the framework version block.
func (c *Client) CoreVersion(ctx context.Context) (*VersionInfo, error) {
	var res VersionInfo
	err := c.call(ctx, "core.version", tokenReq{Method: "core.version", Token: c.token}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ModuleInfo fetches metadata for one module.
func (c *Client) ModuleInfo(ctx context.Context, moduleType, name string) (*ModuleInfo, error) {
	var res ModuleInfo
	err := c.call(ctx, "module.info", moduleReq{
		Method:     "module.info",
		Token:      c.token,
		ModuleType: moduleType,
		ModuleName: name,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ModuleOptions fetches the datastore options for one module.
func (c *Client) ModuleOptions(ctx context.Context, moduleType, name string) (map[string]ModuleOption, error) {
	res := map[string]ModuleOption{}
	err := c.call(ctx, "module.options", moduleReq{
		Method:     "module.options",
		Token:      c.token,
		ModuleType: moduleType,
		ModuleName: name,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ModuleExecute launches a module with the given datastore options.
func (c *Client) ModuleExecute(ctx context.Context, moduleType, name string, options map[string]interface{}) (*ExecuteResult, error) {
	var res ExecuteResult
	err := c.call(ctx, "module.execute", moduleExecuteReq{
		Method:     "module.execute",
		Token:      c.token,
		ModuleType: moduleType,
		ModuleName: name,
		Options:    options,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// JobList returns the running jobs as id -> name.
func (c *Client) JobList(ctx context.Context) (map[string]string, error) {
	res := map[string]string{}
	err := c.call(ctx, "job.list", tokenReq{Method: "job.list", Token: c.token}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// JobInfo returns the raw info map for one job.
func (c *Client) JobInfo(ctx context.Context, jobID int) (map[string]interface{}, error) {
	res := map[string]interface{}{}
	err := c.call(ctx, "job.info", jobReq{
		Method: "job.info",
		Token:  c.token,
		JobID:  strconv.Itoa(jobID),
	}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// JobStop kills a running job.
func (c *Client) JobStop(ctx context.Context, jobID int) error {
	return c.call(ctx, "job.stop", jobReq{
		Method: "job.stop",
		Token:  c.token,
		JobID:  strconv.Itoa(jobID),
	}, nil)
}

// SessionList returns open sessions keyed by session id.
func (c *Client) SessionList(ctx context.Context) (map[uint32]Session, error) {
	res := map[uint32]Session{}
	err := c.call(ctx, "session.list", tokenReq{Method: "session.list", Token: c.token}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ConsoleCreate allocates a fresh framework console.
func (c *Client) ConsoleCreate(ctx context.Context) (*Console, error) {
	var res Console
	err := c.call(ctx, "console.create", tokenReq{Method: "console.create", Token: c.token}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ConsoleDestroy releases a console.
func (c *Client) ConsoleDestroy(ctx context.Context, consoleID string) error {
	return c.call(ctx, "console.destroy", consoleReq{
		Method:    "console.destroy",
		Token:     c.token,
		ConsoleID: consoleID,
	}, nil)
}

// ConsoleWrite sends raw input to a console. Commands must end in a
// newline or the console never executes them.
func (c *Client) ConsoleWrite(ctx context.Context, consoleID, data string) error {
	return c.call(ctx, "console.write", consoleWriteReq{
		Method:    "console.write",
		Token:     c.token,
		ConsoleID: consoleID,
		Data:      data,
	}, nil)
}

// ConsoleRead drains the console's output buffer.
func (c *Client) ConsoleRead(ctx context.Context, consoleID string) (*ConsoleOutput, error) {
	var res ConsoleOutput
	err := c.call(ctx, "console.read", consoleReq{
		Method:    "console.read",
		Token:     c.token,
		ConsoleID: consoleID,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
