// Package all wires every built-in storage backend into the storage factory.
//
// It exists purely for side effects: blank-importing it registers the
// backends' factories, making the following storage kinds available:
//
//   - "postgres" (rideingest/internal/storage/postgres)
//   - "sqlite"   (rideingest/internal/storage/sqlite)
//
// Binaries that should support only one backend can import that backend
// package directly instead.
package all

import (
	_ "rideingest/internal/storage/postgres"
	_ "rideingest/internal/storage/sqlite"
)
