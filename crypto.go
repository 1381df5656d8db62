// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package session

import "crypto/rand"

// randReader is a package-level source of randomness that tests can swap.
// Nothing in the package reads it at present: New draws its DH private key
// through internal/pkg/dh, which uses crypto/rand directly.
var randReader = rand.Reader
