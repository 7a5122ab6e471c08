// Package compat gates module installation on the host application version.
// A module declares a constraint string such as ">= 1.2.0, < 2.0.0"; the
// installer checks it against the version the application reports and refuses
// the module when the check fails.
package compat
