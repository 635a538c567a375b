// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package igb

import "errors"

var (
	ErrTimeout          = errors.New("igb: timeout")
	ErrNoMemory         = errors.New("igb: no memory")
	ErrInvalidParameter = errors.New("igb: invalid parameter")
)

// UnknownError reports a hardware condition with no more precise
// classification, for example an error flag in a status register.
type UnknownError string

func (e UnknownError) Error() string { return string(e) }
