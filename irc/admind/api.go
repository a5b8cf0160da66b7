package admind

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

type statsResponse struct {
	Server        string  `json:"server"`
	Clients       int     `json:"clients"`
	Channels      int     `json:"channels"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type channelResponse struct {
	Name    string `json:"name"`
	Topic   string `json:"topic"`
	Members int    `json:"members"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, statsResponse{
		Server:        s.stats.ServerName(),
		Clients:       s.stats.ClientCount(),
		Channels:      s.stats.ChannelCount(),
		UptimeSeconds: s.stats.Uptime().Seconds(),
	})
}

func (s *Server) handleChannels(c echo.Context) error {
	summaries := s.stats.Channels()

	channels := make([]channelResponse, 0, len(summaries))
	for _, ch := range summaries {
		channels = append(channels, channelResponse{
			Name:    ch.Name.String(),
			Topic:   ch.Topic.String(),
			Members: ch.Members,
		})
	}
	return c.JSON(http.StatusOK, channels)
}

func (s *Server) handleEvents(c echo.Context) error {
	if s.events == nil {
		return echo.NewHTTPError(http.StatusNotFound, "event log is disabled")
	}

	limit := defaultEventLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxEventLimit)
	}

	records, err := s.events.Recent(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, records)
}
