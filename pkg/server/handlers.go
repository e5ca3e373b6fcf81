// Copyright 2023 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//
package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/generator"
)

type statusResponse struct {
	generator.State
	FrequencyText string `json:"frequency_text"`
}

type frequencyRequest struct {
	Hz *float64 `json:"hz"`
}

type intensityRequest struct {
	Value *int `json:"value"`
}

type waveformRequest struct {
	Mode string `json:"mode"`
}

type startOutputRequest struct {
	Hz        float64 `json:"hz"`
	Intensity int     `json:"intensity"`
}

type transitionRequest struct {
	Hz         float64 `json:"hz"`
	Intensity  int     `json:"intensity"`
	DurationMS int     `json:"duration_ms"`
	Steps      int     `json:"steps"`
	TickMS     int     `json:"tick_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GET /v1/status
func (s *Server) handleStatus(c echo.Context) error {
	return s.respondState(c)
}

// POST /v1/open
func (s *Server) handleOpen(c echo.Context) error {
	if err := s.service.Open(c.Request().Context()); err != nil {
		return err
	}
	return s.respondState(c)
}

// PUT /v1/frequency
func (s *Server) handleFrequency(c echo.Context) error {
	var req frequencyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Hz == nil {
		return model.InvalidArgument("hz is required")
	}
	if err := s.service.ApplyFrequency(c.Request().Context(), *req.Hz); err != nil {
		return err
	}
	return s.respondState(c)
}

// PUT /v1/intensity
func (s *Server) handleIntensity(c echo.Context) error {
	var req intensityRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Value == nil {
		return model.InvalidArgument("value is required")
	}
	if err := s.service.ApplyIntensity(c.Request().Context(), *req.Value); err != nil {
		return err
	}
	return s.respondState(c)
}

// PUT /v1/waveform
func (s *Server) handleWaveform(c echo.Context) error {
	var req waveformRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	w, err := model.ParseWaveform(req.Mode)
	if err != nil {
		return err
	}
	if err := s.service.SetWaveform(c.Request().Context(), w); err != nil {
		return err
	}
	return s.respondState(c)
}

// POST /v1/output/start
func (s *Server) handleStartOutput(c echo.Context) error {
	var req startOutputRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.service.StartOutput(c.Request().Context(), req.Hz, req.Intensity); err != nil {
		return err
	}
	return s.respondState(c)
}

// POST /v1/output/stop
func (s *Server) handleStopOutput(c echo.Context) error {
	if err := s.service.StopOutput(c.Request().Context()); err != nil {
		return err
	}
	return s.respondState(c)
}

// POST /v1/transition
func (s *Server) handleTransition(c echo.Context) error {
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	spec := generator.RampSpec{
		Duration: time.Duration(req.DurationMS) * time.Millisecond,
		Steps:    req.Steps,
		Tick:     time.Duration(req.TickMS) * time.Millisecond,
	}
	if err := s.service.TransitionTo(req.Hz, req.Intensity, spec); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, s.status())
}

func (s *Server) respondState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) status() statusResponse {
	st := s.service.State()
	return statusResponse{
		State:         st,
		FrequencyText: st.FrequencyText(),
	}
}

// errorHandler maps service errors onto HTTP status codes.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusCode(err)
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		msg = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	} else {
		s.log.Debug().Err(err).Str("path", c.Path()).Msg("request rejected")
	}
	if err := c.JSON(code, errorResponse{Error: msg}); err != nil {
		s.log.Warn().Err(err).Msg("failed to send error response")
	}
}

func statusCode(err error) int {
	switch {
	case model.IsInvalidArgument(err):
		return http.StatusBadRequest
	case model.IsNotReady(err):
		return http.StatusConflict
	case model.IsGpioFault(err), model.IsDeviceNotAttached(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}
