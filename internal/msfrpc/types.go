package msfrpc

import "fmt"

// Requests go over the wire as msgpack arrays: [method, token, args...].
// The asArray structs below pin that framing.

type loginReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method   string
	Username string
	Password string
}

type logoutReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method   string
	Token    string
	Session  string
}

// tokenReq covers every method that takes only the auth token.
type tokenReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method   string
	Token    string
}

// moduleReq covers module.info and module.options.
type moduleReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method     string
	Token      string
	ModuleType string
	ModuleName string
}

type moduleExecuteReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method     string
	Token      string
	ModuleType string
	ModuleName string
	Options    map[string]interface{}
}

// jobReq covers job.info and job.stop.
type jobReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method   string
	Token    string
	JobID    string
}

// consoleReq covers console.destroy and console.read.
type consoleReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method    string
	Token     string
	ConsoleID string
}

type consoleWriteReq struct {
	_msgpack struct{} `msgpack:",asArray"`
	Method    string
	Token     string
	ConsoleID string
	Data      string
}

// errorRes is the in-band error map msfrpcd returns instead of a result.
type errorRes struct {
	Error        bool   `msgpack:"error"`
	ErrorClass   string `msgpack:"error_class"`
	ErrorMessage string `msgpack:"error_message"`
}

// RPCError is a server-side error reported by msfrpcd.
type RPCError struct {
	Method  string
	Class   string
	Message string
}

func (e *RPCError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Method, e.Message, e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

type loginRes struct {
	Result string `msgpack:"result"`
	Token  string `msgpack:"token"`
}

// resultRes covers methods that only acknowledge: auth.logout, job.stop,
// console.destroy.
type resultRes struct {
	Result string `msgpack:"result"`
}

// ExecuteResult is the handle module.execute returns. Auxiliary and
// exploit modules run as background jobs; a zero JobID with an empty UUID
// means the module completed inline.
type ExecuteResult struct {
	JobID int    `msgpack:"job_id"`
	UUID  string `msgpack:"uuid"`
}

// ModuleInfo is the metadata block from module.info. Rank is an integer on
// current framework versions and a string on older ones; References are
// [ctx_id, ctx_val] pairs.
type ModuleInfo struct {
	Name        string      `msgpack:"name"`
	Description string      `msgpack:"description"`
	License     string      `msgpack:"license"`
	Rank        interface{} `msgpack:"rank"`
	FilePath    string      `msgpack:"filepath"`
	Authors     []string    `msgpack:"authors"`
	References  [][]string  `msgpack:"references"`
}

// ModuleOption is one datastore option from module.options.
type ModuleOption struct {
	Type     string      `msgpack:"type"`
	Required bool        `msgpack:"required"`
	Advanced bool        `msgpack:"advanced"`
	Evasion  bool        `msgpack:"evasion"`
	Desc     string      `msgpack:"desc"`
	Default  interface{} `msgpack:"default"`
}

// VersionInfo is the framework version block from core.version.
type VersionInfo struct {
	Version string `msgpack:"version"`
	Ruby    string `msgpack:"ruby"`
	API     string `msgpack:"api"`
}

// Console is the handle console.create returns.
type Console struct {
	ID     string `msgpack:"id"`
	Prompt string `msgpack:"prompt"`
	Busy   bool   `msgpack:"busy"`
}

// ConsoleOutput is one chunk of buffered console output. Busy stays true
// while a command is still running; callers poll until the console is idle
// and the buffer is empty.
type ConsoleOutput struct {
	Data   string `msgpack:"data"`
	Prompt string `msgpack:"prompt"`
	Busy   bool   `msgpack:"busy"`
}

// Session is one entry from session.list.
type Session struct {
	Type        string `msgpack:"type"`
	TunnelLocal string `msgpack:"tunnel_local"`
	TunnelPeer  string `msgpack:"tunnel_peer"`
	ViaExploit  string `msgpack:"via_exploit"`
	ViaPayload  string `msgpack:"via_payload"`
	Description string `msgpack:"desc"`
	Info        string `msgpack:"info"`
	Workspace   string `msgpack:"workspace"`
	SessionHost string `msgpack:"session_host"`
	SessionPort int    `msgpack:"session_port"`
	Username    string `msgpack:"username"`
	UUID        string `msgpack:"uuid"`
	ExploitUUID string `msgpack:"exploit_uuid"`
}
