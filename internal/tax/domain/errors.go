package domain

import "errors"

var (
	ErrTableNotFound        = errors.New("tax_table_not_found")
	ErrNoActiveTable        = errors.New("no_active_tax_table")
	ErrInvalidVersion       = errors.New("invalid_tax_table_version")
	ErrInvalidBrackets      = errors.New("invalid_tax_brackets")
	ErrInvalidRate          = errors.New("invalid_tax_rate")
	ErrInvalidGrossSalary   = errors.New("invalid_gross_salary")
	ErrVersionAlreadyExists = errors.New("tax_table_version_already_exists")
)
