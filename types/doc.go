// Package types provides core types shared across the tutorflow library.
// This package has ZERO dependencies on other tutorflow packages to avoid
// circular imports. All other packages should import types from here.
package types
