// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"crypto/rand"
	"fmt"
)

type paramStateCookie struct {
	paramHeader
	cookie []byte
}

const stateCookieLength = 32

func newRandomStateCookie() (*paramStateCookie, error) {
	randCookie := make([]byte, stateCookieLength)
	// crypto/rand.Read returns n == len(b) if and only if err == nil.
	if _, err := rand.Read(randCookie); err != nil {
		return nil, err
	}

	return &paramStateCookie{cookie: randCookie}, nil
}

func (s *paramStateCookie) marshal() ([]byte, error) {
	s.typ = stateCookie
	s.raw = s.cookie

	return s.paramHeader.marshal()
}

func (s *paramStateCookie) unmarshal(raw []byte) (param, error) {
	if err := s.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}
	s.cookie = s.raw

	return s, nil
}

// String makes paramStateCookie printable.
func (s *paramStateCookie) String() string {
	return fmt.Sprintf("%s: %s", s.paramHeader, s.cookie)
}
