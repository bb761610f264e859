package common

import "errors"

// Taxonomía de errores del motor. Siempre se envuelven con fmt.Errorf("...: %w", err)
// y se comparan con errors.Is.
var (
	// ErrInvalidArgument: numPartitions <= 0, particiones que no coinciden en un join local, etc.
	ErrInvalidArgument = errors.New("argumento invalido")
	// ErrKeyNotHashable: la clave no cumple el contrato de igualdad/hash (slices, maps, funcs).
	ErrKeyNotHashable = errors.New("clave no hasheable")
	// ErrExternalProcess: el programa externo de un Pipe terminó con error o rompió el protocolo de líneas.
	ErrExternalProcess = errors.New("fallo del proceso externo")
	// ErrResultTooLarge: Collect superó el límite de entradas configurado.
	ErrResultTooLarge = errors.New("resultado demasiado grande para materializar en memoria")
	// ErrUnknownUDF: no existe una UDF registrada con ese nombre y tipo.
	ErrUnknownUDF = errors.New("udf no encontrada")
	// ErrUnsupportedOperation: tipo de operación no soportado en un JobRequest.
	ErrUnsupportedOperation = errors.New("operacion no soportada")
	// ErrJobNotFound: el JobStore no conoce el job pedido.
	ErrJobNotFound = errors.New("job no encontrado")
)
