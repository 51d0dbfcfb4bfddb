// Package repository define las interfaces de acceso a datos que consume el
// core de autenticación (sesiones, links OAuth, lookup de usuarios).
//
// Las implementaciones viven en internal/store/pg (PostgreSQL, pgx) y
// internal/store/memory (tests y desarrollo local).
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los repos se obtienen de UnitOfWork.WithTx y solo son válidos dentro del callback
//   - Errores de dominio están en errors.go
package repository
