package pipe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"reflect"
	"strconv"
	"strings"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/logger"
)

// Protocolo con el programa externo: una línea de texto por entrada en stdin, una línea
// de resultado por cada línea enviada en stdout, en el mismo orden.

// FormatFunc serializa una entrada a una línea (sin '\n').
type FormatFunc func(e common.Entry) (string, error)

// ParseFunc convierte la línea de salida número i en el valor de la entrada de salida.
type ParseFunc func(line string) (any, error)

// Options configura la serialización. Los campos nil usan los valores por defecto.
type Options struct {
	Format FormatFunc
	Parse  ParseFunc
}

// DefaultFormat escribe el valor: slices y arrays separados por espacios, el resto con fmt.Sprint.
func DefaultFormat(e common.Entry) (string, error) {
	v := reflect.ValueOf(e.Value)
	if v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Type().Elem().Kind() != reflect.Uint8 {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, " "), nil
	}
	if b, ok := e.Value.([]byte); ok {
		return string(b), nil
	}
	return fmt.Sprint(e.Value), nil
}

// DefaultParse deja la línea tal cual.
func DefaultParse(line string) (any, error) { return line, nil }

// ParseNumber interpreta la línea como int64 y, si no puede, como float64.
func ParseNumber(line string) (any, error) {
	s := strings.TrimSpace(line)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("salida no numerica %q: %w", line, common.ErrExternalProcess)
	}
	return f, nil
}

// Run ejecuta command una vez, le escribe lines por stdin y devuelve las líneas de stdout.
// Falla con ErrExternalProcess si el proceso no arranca, termina con código distinto de
// cero o no devuelve exactamente una línea por cada línea recibida.
func Run(ctx context.Context, command []string, lines []string) ([]string, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("pipe sin comando: %w", common.ErrInvalidArgument)
	}
	for i, l := range lines {
		if strings.ContainsAny(l, "\r\n") {
			return nil, fmt.Errorf("la linea %d contiene un salto de linea: %w", i, common.ErrInvalidArgument)
		}
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin de %s: %w", command[0], errors.Join(common.ErrExternalProcess, err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout de %s: %w", command[0], errors.Join(common.ErrExternalProcess, err))
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("no se pudo iniciar %s: %w", command[0], errors.Join(common.ErrExternalProcess, err))
	}

	// Escribir en paralelo: si el proceso responde mientras lee, stdout no se llena.
	writeErr := make(chan error, 1)
	go func() {
		w := bufio.NewWriter(stdin)
		for _, l := range lines {
			if _, err := w.WriteString(l + "\n"); err != nil {
				stdin.Close()
				writeErr <- err
				return
			}
		}
		err := w.Flush()
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		writeErr <- err
	}()

	// Si el contexto vence, cerrar stdout desbloquea la lectura aunque algún proceso
	// hijo siga teniendo el pipe abierto.
	stop := context.AfterFunc(ctx, func() { stdout.Close() })
	defer stop()

	var out []string
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	scanErr := sc.Err()
	if scanErr != nil {
		// Drenar para que Wait no quede bloqueado.
		io.Copy(io.Discard, stdout)
	}
	wErr := <-writeErr
	waitErr := cmd.Wait()

	if waitErr != nil {
		return nil, fmt.Errorf("%s termino con error (%v), stderr: %q: %w", command[0], waitErr, strings.TrimSpace(stderr.String()), common.ErrExternalProcess)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("leyendo salida de %s: %w", command[0], errors.Join(common.ErrExternalProcess, scanErr))
	}
	if wErr != nil {
		return nil, fmt.Errorf("%s cerro su entrada antes de tiempo: %w", command[0], errors.Join(common.ErrExternalProcess, wErr))
	}
	if len(out) != len(lines) {
		return nil, fmt.Errorf("%s devolvio %d lineas para %d de entrada: %w", command[0], len(out), len(lines), common.ErrExternalProcess)
	}
	logger.Debug("Pipe", "%s: %d lineas procesadas", command[0], len(lines))
	return out, nil
}

// Entries serializa entries, las pasa por command y arma la salida: la entrada i de
// salida conserva la clave de la entrada i de origen.
func Entries(ctx context.Context, command []string, entries []common.Entry, opts Options) ([]common.Entry, error) {
	format, parse := opts.Format, opts.Parse
	if format == nil {
		format = DefaultFormat
	}
	if parse == nil {
		parse = DefaultParse
	}
	if len(entries) == 0 {
		return nil, nil
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		l, err := format(e)
		if err != nil {
			return nil, fmt.Errorf("serializando entrada %d: %w", i, err)
		}
		lines[i] = l
	}

	outLines, err := Run(ctx, command, lines)
	if err != nil {
		return nil, err
	}

	out := make([]common.Entry, len(outLines))
	for i, l := range outLines {
		v, err := parse(l)
		if err != nil {
			return nil, fmt.Errorf("linea de salida %d: %w", i, err)
		}
		out[i] = common.Entry{Key: entries[i].Key, Value: v}
	}
	return out, nil
}
