// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build unix

package orientation

import "syscall"

// syscallNonblock keeps the access check from blocking on a named pipe without writer.
const syscallNonblock = syscall.O_NONBLOCK
