package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/sjson"
	"github.com/ysmood/kit"
)

func init() {
	// the debug mode of gin prints the routes to stdout
	gin.SetMode(gin.ReleaseMode)
}

func (s *Server) engine() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())

	e.GET("/json/version", s.version)

	// the ws path is arbitrary, it may contain chars that gin treats as route params
	e.NoRoute(s.endpoint)

	return e
}

func (s *Server) endpoint(c *gin.Context) {
	if c.Request.URL.Path != s.wsPath {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}

	if c.Request.Method != http.MethodGet {
		c.String(http.StatusMethodNotAllowed, "405 method not allowed")
		return
	}

	if websocket.IsWebSocketUpgrade(c.Request) {
		s.proxy(c.Writer, c.Request)
		return
	}

	c.String(http.StatusOK, "Running")
}

// version replies the "/json/version" of the browser with the webSocketDebuggerUrl replaced by the server's.
func (s *Server) version(c *gin.Context) {
	if c.Request.URL.Path == s.wsPath && websocket.IsWebSocketUpgrade(c.Request) {
		s.endpoint(c)
		return
	}

	u, err := url.Parse(s.browserURL)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = "/json/version"

	obj, err := kit.Req(u.String()).Context(c.Request.Context()).JSON()
	if err != nil {
		c.String(http.StatusBadGateway, err.Error())
		return
	}
	if !obj.IsObject() {
		c.String(http.StatusBadGateway, "invalid response from the browser: "+obj.Raw)
		return
	}

	res, err := sjson.Set(obj.Raw, "webSocketDebuggerUrl", s.WSEndpoint())
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(res))
}
