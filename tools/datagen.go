package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	dir := flag.String("dir", "data/inputs", "Directorio de salida")
	lines := flag.Int("lines", 2000, "Lineas del archivo de wordcount")
	users := flag.Int("users", 10, "Usuarios del archivo de join")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0755); err != nil {
		log.Fatalf("No se pudo crear %s: %v", *dir, err)
	}

	// 1. DATA PARA WORDCOUNT (Texto plano)
	// Generamos un archivo grande repitiendo palabras
	var wc strings.Builder
	baseText := "hola mundo sistema distribuido go spark flink datos nube proceso "
	for i := 0; i < *lines; i++ {
		wc.WriteString(baseText + "\n")
	}
	write(filepath.Join(*dir, "wordcount.txt"), wc.String())

	// 2. DATA PARA JOIN (Usuarios + Pedidos Mixtos)
	// Formato: U,ID,Nombre  y  O,OrderID,UserID,Producto
	var join strings.Builder
	for i := 1; i <= *users; i++ {
		fmt.Fprintf(&join, "U,%d,Usuario%d\n", i, i)
	}
	// Cada usuario hace 2 pedidos; el último ID no tiene usuario (queda fuera del inner join)
	for i := 1; i <= *users+1; i++ {
		fmt.Fprintf(&join, "O,10%d,%d,Laptop\n", i, i)
		fmt.Fprintf(&join, "O,20%d,%d,Mouse\n", i, i)
	}
	write(filepath.Join(*dir, "join_data.txt"), join.String())

	// 3. DATA PARA PIPE (números separados por espacios)
	var nums strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&nums, "%d %d %d\n", i, i+1, i+2)
	}
	write(filepath.Join(*dir, "numbers.txt"), nums.String())

	fmt.Println(" Todos los datos generados exitosamente.")
}

func write(path, content string) {
	fmt.Printf("Generando %s ...\n", path)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		log.Fatalf("No se pudo escribir %s: %v", path, err)
	}
}
