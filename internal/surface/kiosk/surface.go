package kiosk

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"

	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

const photoQuality = 88

// Open encodes the session's images for the asset routes and announces the
// session to every connected page.
func (s *Server) Open(_ context.Context, v session.View) error {
	e := &entry{open: message{
		Type:        typeOpen,
		ID:          v.ID,
		File:        v.Filename,
		URL:         v.URL,
		Remaining:   v.Remaining,
		X:           v.Geometry.Offset.X,
		Y:           v.Geometry.Offset.Y,
		Width:       v.Geometry.Width,
		Height:      v.Geometry.Height,
		Placeholder: v.Placeholder,
	}}
	if v.Photo != nil {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, v.Photo, &jpeg.Options{Quality: photoQuality}); err != nil {
			return err
		}
		e.photo = buf.Bytes()
	}
	if v.QR != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, v.QR); err != nil {
			return err
		}
		e.qr = buf.Bytes()
	}

	s.mu.Lock()
	s.sessions[v.ID] = e
	s.mu.Unlock()

	s.hub.broadcast(e.open)
	return nil
}

func (s *Server) Tick(_ context.Context, id int64, remaining int) error {
	s.mu.Lock()
	if e := s.sessions[id]; e != nil {
		e.open.Remaining = remaining
	}
	s.mu.Unlock()
	s.hub.broadcast(message{Type: typeTick, ID: id, Remaining: remaining})
	return nil
}

// Close drops the session's assets; later asset requests get 404.
func (s *Server) Close(_ context.Context, id int64, reason session.CloseReason) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.hub.broadcast(message{Type: typeClose, ID: id, Reason: string(reason)})
	s.log.Trace("kiosk card removed", logx.Int64("session", id), logx.Int("clients", s.hub.count()))
	return nil
}
